/*
Package cli holds helpers shared by the sentinel commands.

Output formatting:

Command results are written as text, JSON or YAML:

	formatter, err := cli.NewFormatter(cli.FormatYAML)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Exit codes:

Commands return typed errors. ExitCode maps them to the process status so
scripts can tell a failed check from a broken configuration:

	if err := rootCmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}

Signal handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
