package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat     string
	inspectSampleRows int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the local transcript database",
	Long: `Inspect the schema and contents of the local transcript database.

This command provides detailed information about:
  • Schema version
  • Tables, columns and types
  • Row counts
  • Sample rows from each table

The database is opened read-only.

Examples:
  multichat inspect                         # Inspect the configured database
  multichat inspect /path/to/multichat.db   # Inspect a specific file
  multichat inspect --format json --sample 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.Storage.Path
		if len(args) > 0 {
			dbPath = args[0]
		}
		switch inspectFormat {
		case "text", "json":
		default:
			return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
		}
		return inspectDatabase(cmdContext(cmd), cmd.OutOrStdout(), dbPath)
	},
}

// TableReport describes one table of the database
type TableReport struct {
	Name    string                   `json:"name"`
	Rows    int                      `json:"rows"`
	Columns []ColumnInfo             `json:"columns"`
	Sample  []map[string]interface{} `json:"sample,omitempty"`
}

// ColumnInfo is one row of PRAGMA table_info
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

func inspectDatabase(ctx context.Context, out io.Writer, dbPath string) error {
	db, err := internal.OpenDatabaseReadOnly(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	version, err := internal.SchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	tables, err := getTables(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get tables: %w", err)
	}

	reports := make([]TableReport, 0, len(tables))
	for _, name := range tables {
		report, err := inspectTable(ctx, db, name)
		if err != nil {
			internal.LogWarn("Error inspecting table %s: %v", name, err)
			continue
		}
		reports = append(reports, report)
	}

	if inspectFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"path":           dbPath,
			"schema_version": version,
			"tables":         reports,
		})
	}

	fmt.Fprintf(out, "📋 Database: %s\n", dbPath)
	fmt.Fprintf(out, "🔖 Schema version: %d\n", version)
	if len(reports) == 0 {
		fmt.Fprintln(out, "⚠️  No tables found in database")
		return nil
	}
	fmt.Fprintf(out, "📊 Found %d table(s)\n\n", len(reports))
	for _, r := range reports {
		printTable(out, r)
		fmt.Fprintln(out)
	}
	return nil
}

func getTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// quoteIdent quotes a table or column name for interpolation
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func inspectTable(ctx context.Context, db *sql.DB, table string) (TableReport, error) {
	report := TableReport{Name: table}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&report.Rows); err != nil {
		return report, fmt.Errorf("failed to get row count: %w", err)
	}

	columns, err := getTableSchema(ctx, db, table)
	if err != nil {
		return report, fmt.Errorf("failed to get schema: %w", err)
	}
	report.Columns = columns

	if report.Rows > 0 && inspectSampleRows > 0 {
		report.Sample, err = sampleRows(ctx, db, table, columns, inspectSampleRows)
		if err != nil {
			internal.LogWarn("Error reading sample rows of %s: %v", table, err)
		}
	}
	return report, nil
}

func getTableSchema(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func sampleRows(ctx context.Context, db *sql.DB, table string, columns []ColumnInfo, limit int) ([]map[string]interface{}, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quoteIdent(col.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", strings.Join(names, ", "), quoteIdent(table), limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sample []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return sample, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if table == "cookies" && col.Name == "value" {
				row[col.Name] = "<redacted>"
			} else if b, ok := values[i].([]byte); ok {
				row[col.Name] = string(b)
			} else {
				row[col.Name] = values[i]
			}
		}
		sample = append(sample, row)
	}
	return sample, rows.Err()
}

func printTable(out io.Writer, r TableReport) {
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "📦 Table: %s\n", r.Name)
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "📊 Rows: %d\n\n", r.Rows)

	fmt.Fprintln(out, "📐 Schema:")
	for _, col := range r.Columns {
		pk := ""
		if col.PrimaryKey {
			pk = " [PRIMARY KEY]"
		}
		notNull := ""
		if col.NotNull {
			notNull = " NOT NULL"
		}
		fmt.Fprintf(out, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
	}

	if len(r.Sample) == 0 {
		return
	}
	fmt.Fprintf(out, "\n📄 Sample Data (first %d rows):\n", len(r.Sample))
	for i, row := range r.Sample {
		fmt.Fprintf(out, "\n  Row %d:\n", i+1)
		for _, col := range r.Columns {
			val := row[col.Name]
			valStr := "<NULL>"
			if val != nil {
				valStr = fmt.Sprintf("%v", val)
				// first line only, truncated
				if j := strings.IndexByte(valStr, '\n'); j >= 0 {
					valStr = valStr[:j] + "..."
				}
				if len(valStr) > 200 {
					valStr = valStr[:200] + "..."
				}
			}
			fmt.Fprintf(out, "    %s: %s\n", col.Name, valStr)
		}
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().IntVar(&inspectSampleRows, "sample", 3, "Number of sample rows to show")
}
