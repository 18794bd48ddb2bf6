/*
Package cli provides helpers shared by the relay command.

Output Formatting:

Commands that print records accept --output text|json|csv. Data
implementing Table is rendered as aligned columns or CSV:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, table)

Errors:

ConfigError marks configuration problems, CommandError wraps a failed
subcommand. ExitCode maps either to the process exit status.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
