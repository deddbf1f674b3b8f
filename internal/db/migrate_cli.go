package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand executes a migrate subcommand ("up", "down", "version"
// or "force N") against the database at dbPath using the embedded
// migrations.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) == 0 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate subcommand")
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	migrations := Migrations()
	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
	case "version":
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate subcommand %q", args[0])
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d", version)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}

func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, `Usage: swing migrate <command>

Commands:
  up          apply all pending migrations
  down        roll back the most recent migration
  version     print the current schema version
  force N     mark the schema as version N without running migrations`)
}
