// Package sqlite provides the SQLite driver for the argil data layer, built
// on database/sql with the pure-Go modernc.org/sqlite backend. Conditions
// compile to parameterized SQL with "?" placeholders.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/leandroluk/argil/core"
	_ "modernc.org/sqlite"
)

//region SqliteDriver

// SqliteDriver implements core.Driver on top of a *sql.DB.
type SqliteDriver struct {
	db *sql.DB
}

var _ core.Driver = (*SqliteDriver)(nil)

// NewSqliteDriver opens (or creates) the database at the given DSN, e.g. a
// file path or ":memory:".
func NewSqliteDriver(dsn string) (*SqliteDriver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite connect error: %w", err)
	}
	return &SqliteDriver{db: db}, nil
}

// NewSqliteDriverWithDB wraps an existing handle, letting tests inject a mock
// database.
func NewSqliteDriverWithDB(db *sql.DB) *SqliteDriver {
	return &SqliteDriver{db: db}
}

func (driver *SqliteDriver) formatTable(schema *core.Schema) string {
	// SQLite has a single namespace per file; the schema database is ignored.
	return fmt.Sprintf("%q", schema.Collection)
}

// buildCondition compiles a condition tree into a SQL clause, appending every
// comparison value to argList.
func (driver *SqliteDriver) buildCondition(condition *core.Condition, argList *[]any) string {
	if condition == nil {
		return "1=1"
	}
	if len(condition.Children) > 0 {
		partList := []string{}
		for _, child := range condition.Children {
			partList = append(partList, driver.buildCondition(child, argList))
		}
		switch *condition.Operator {
		case core.OpAnd:
			return "(" + strings.Join(partList, " AND ") + ")"
		case core.OpNot:
			return "NOT (" + strings.Join(partList, " AND ") + ")"
		}
	}

	column := fmt.Sprintf("%q", condition.FieldName)
	switch *condition.Operator {
	case core.OpNil:
		return column + " IS NULL"
	case core.OpEq:
		if condition.Value == nil {
			return column + " IS NULL"
		}
		*argList = append(*argList, condition.Value)
		return column + " = ?"
	case core.OpNe:
		if condition.Value == nil {
			return column + " IS NOT NULL"
		}
		*argList = append(*argList, condition.Value)
		return column + " != ?"
	case core.OpGt:
		*argList = append(*argList, condition.Value)
		return column + " > ?"
	case core.OpGte:
		*argList = append(*argList, condition.Value)
		return column + " >= ?"
	case core.OpLt:
		*argList = append(*argList, condition.Value)
		return column + " < ?"
	case core.OpLte:
		*argList = append(*argList, condition.Value)
		return column + " <= ?"
	case core.OpLike:
		*argList = append(*argList, condition.Value)
		return column + " LIKE ?"
	case core.OpIn:
		return driver.buildListClause(column, "IN", condition.Value, argList)
	case core.OpNin:
		return driver.buildListClause(column, "NOT IN", condition.Value, argList)
	case core.OpExists:
		if present, _ := condition.Value.(bool); present {
			return column + " IS NOT NULL"
		}
		return column + " IS NULL"
	}
	return "1=1"
}

func (driver *SqliteDriver) buildListClause(column, keyword string, value any, argList *[]any) string {
	valueList, _ := value.([]any)
	if len(valueList) == 0 {
		if keyword == "IN" {
			return "1=0"
		}
		return "1=1"
	}
	placeholderList := []string{}
	for _, v := range valueList {
		*argList = append(*argList, v)
		placeholderList = append(placeholderList, "?")
	}
	return fmt.Sprintf("%s %s (%s)", column, keyword, strings.Join(placeholderList, ", "))
}

//endregion

//region execution helpers

func (driver *SqliteDriver) exec(ctx context.Context, sqlQuery string, args ...any) (sql.Result, error) {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if sqliteTx, ok := tx.(*sqliteTransaction); ok {
			return sqliteTx.transaction.ExecContext(ctx, sqlQuery, args...)
		}
	}
	return driver.db.ExecContext(ctx, sqlQuery, args...)
}

func (driver *SqliteDriver) query(ctx context.Context, sqlQuery string, args ...any) (*sql.Rows, error) {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if sqliteTx, ok := tx.(*sqliteTransaction); ok {
			return sqliteTx.transaction.QueryContext(ctx, sqlQuery, args...)
		}
	}
	return driver.db.QueryContext(ctx, sqlQuery, args...)
}

func (driver *SqliteDriver) queryRow(ctx context.Context, sqlQuery string, args ...any) *sql.Row {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if sqliteTx, ok := tx.(*sqliteTransaction); ok {
			return sqliteTx.transaction.QueryRowContext(ctx, sqlQuery, args...)
		}
	}
	return driver.db.QueryRowContext(ctx, sqlQuery, args...)
}

func (driver *SqliteDriver) collectRows(rows *sql.Rows, single bool) ([]core.Record, error) {
	defer rows.Close()

	columnNameList, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultList []core.Record
	for rows.Next() {
		valueList := make([]any, len(columnNameList))
		pointerList := make([]any, len(columnNameList))
		for i := range valueList {
			pointerList[i] = &valueList[i]
		}
		if err := rows.Scan(pointerList...); err != nil {
			return nil, err
		}
		record := make(core.Record, len(columnNameList))
		for i, name := range columnNameList {
			record[name] = valueList[i]
		}
		resultList = append(resultList, record)
		if single {
			break
		}
	}
	return resultList, rows.Err()
}

func (driver *SqliteDriver) find(ctx context.Context, schema *core.Schema, query *core.Where, single bool) ([]core.Record, error) {
	selectColumns := "*"
	if len(query.Projection) > 0 {
		columnNameList := []string{}
		for _, name := range query.Projection {
			columnNameList = append(columnNameList, fmt.Sprintf("%q", name))
		}
		selectColumns = strings.Join(columnNameList, ", ")
	}

	argList := []any{}
	whereClause := driver.buildCondition(query.Condition, &argList)
	sqlQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectColumns, driver.formatTable(schema), whereClause)

	if len(query.Sort) > 0 {
		orderPartList := []string{}
		for _, sortItem := range query.Sort {
			direction := "ASC"
			if sortItem.Order < 0 {
				direction = "DESC"
			}
			orderPartList = append(orderPartList, fmt.Sprintf("%q %s", sortItem.FieldName, direction))
		}
		sqlQuery += " ORDER BY " + strings.Join(orderPartList, ", ")
	}
	if single {
		sqlQuery += " LIMIT 1"
	} else {
		if query.Limit > 0 {
			sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
		}
		if query.Offset > 0 {
			sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
		}
	}

	rows, err := driver.query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, err
	}
	return driver.collectRows(rows, single)
}

//endregion

//region lifecycle

func (driver *SqliteDriver) Connect(ctx context.Context) error {
	return driver.db.PingContext(ctx)
}

func (driver *SqliteDriver) Ping(ctx context.Context) error {
	return driver.db.PingContext(ctx)
}

func (driver *SqliteDriver) Close(ctx context.Context) error {
	return driver.db.Close()
}

func (driver *SqliteDriver) IsConnected(ctx context.Context) bool {
	return driver.db.PingContext(ctx) == nil
}

func (driver *SqliteDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	tx, err := driver.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite transaction error: %w", err)
	}
	return &sqliteTransaction{transaction: tx}, nil
}

//endregion

//region operations

// Insert persists one record. SQLite has no RETURNING on every build the
// driver targets; the canonical row is the record plus the rowid-assigned
// primary key when the caller did not provide one.
func (driver *SqliteDriver) Insert(ctx context.Context, schema *core.Schema, record core.Record) (core.Record, error) {
	columnNameList := make([]string, 0, len(record))
	for name := range record {
		columnNameList = append(columnNameList, name)
	}
	sort.Strings(columnNameList)

	quotedList := make([]string, 0, len(columnNameList))
	placeholderList := make([]string, 0, len(columnNameList))
	argList := make([]any, 0, len(columnNameList))
	for _, name := range columnNameList {
		quotedList = append(quotedList, fmt.Sprintf("%q", name))
		placeholderList = append(placeholderList, "?")
		argList = append(argList, record[name])
	}

	sqlQuery := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		driver.formatTable(schema), strings.Join(quotedList, ", "), strings.Join(placeholderList, ", "))

	result, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, fmt.Errorf("sqlite insert error: %w", err)
	}

	canonical := record.Clone()
	if value, ok := canonical[schema.PrimaryKey]; !ok || value == nil {
		if lastID, err := result.LastInsertId(); err == nil {
			canonical[schema.PrimaryKey] = lastID
		}
	}
	return canonical, nil
}

func (driver *SqliteDriver) FindOne(ctx context.Context, schema *core.Schema, query *core.Where) (core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, true)
	if err != nil {
		return nil, fmt.Errorf("sqlite find error: %w", err)
	}
	if len(resultList) == 0 {
		return nil, nil
	}
	return resultList[0], nil
}

func (driver *SqliteDriver) FindMany(ctx context.Context, schema *core.Schema, query *core.Where) ([]core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, false)
	if err != nil {
		return nil, fmt.Errorf("sqlite find error: %w", err)
	}
	return resultList, nil
}

func (driver *SqliteDriver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	setArgList := []any{}
	columnNameList := make([]string, 0, len(changes))
	for name := range changes {
		columnNameList = append(columnNameList, name)
	}
	sort.Strings(columnNameList)

	setPartList := []string{}
	for _, column := range columnNameList {
		setArgList = append(setArgList, changes[column])
		setPartList = append(setPartList, fmt.Sprintf("%q = ?", column))
	}

	whereArgList := []any{}
	whereClause := driver.buildCondition(condition, &whereArgList)

	sqlQuery := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		driver.formatTable(schema), strings.Join(setPartList, ", "), whereClause)

	result, err := driver.exec(ctx, sqlQuery, append(setArgList, whereArgList...)...)
	if err != nil {
		return 0, fmt.Errorf("sqlite update error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite update error: %w", err)
	}
	return affected, nil
}

func (driver *SqliteDriver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("DELETE FROM %s WHERE %s", driver.formatTable(schema), whereClause)

	result, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, fmt.Errorf("sqlite delete error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite delete error: %w", err)
	}
	return affected, nil
}

func (driver *SqliteDriver) Count(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", driver.formatTable(schema), whereClause)

	var count int64
	if err := driver.queryRow(ctx, sqlQuery, argList...).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite count error: %w", err)
	}
	return count, nil
}

func (driver *SqliteDriver) Exists(ctx context.Context, schema *core.Schema, condition *core.Condition) (bool, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", driver.formatTable(schema), whereClause)

	var found bool
	if err := driver.queryRow(ctx, sqlQuery, argList...).Scan(&found); err != nil {
		return false, fmt.Errorf("sqlite exists error: %w", err)
	}
	return found, nil
}

func (driver *SqliteDriver) Increment(ctx context.Context, schema *core.Schema, condition *core.Condition, field string, delta float64) (int64, error) {
	argList := []any{delta}
	whereClause := driver.buildCondition(condition, &argList)
	column := fmt.Sprintf("%q", field)
	sqlQuery := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE %s",
		driver.formatTable(schema), column, column, whereClause)

	result, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, fmt.Errorf("sqlite increment error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite increment error: %w", err)
	}
	return affected, nil
}

// Aggregate treats each pipeline stage as a raw SQL fragment appended after
// the compiled WHERE clause, mirroring the postgres driver.
func (driver *SqliteDriver) Aggregate(ctx context.Context, schema *core.Schema, condition *core.Condition, pipeline []any) ([]core.Record, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)

	selectClause := "*"
	fragmentList := []string{}
	for _, stage := range pipeline {
		fragment, ok := stage.(string)
		if !ok {
			return nil, fmt.Errorf("sqlite aggregate error: pipeline stages must be SQL fragments, got %T", stage)
		}
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(fragment)), "SELECT ") {
			selectClause = strings.TrimSpace(fragment)[len("SELECT "):]
			continue
		}
		fragmentList = append(fragmentList, fragment)
	}

	sqlQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectClause, driver.formatTable(schema), whereClause)
	if len(fragmentList) > 0 {
		sqlQuery += " " + strings.Join(fragmentList, " ")
	}

	rows, err := driver.query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, fmt.Errorf("sqlite aggregate error: %w", err)
	}
	resultList, err := driver.collectRows(rows, false)
	if err != nil {
		return nil, fmt.Errorf("sqlite aggregate error: %w", err)
	}
	return resultList, nil
}

//endregion

//region indexes

// CreateIndex compiles one index descriptor to CREATE INDEX. SQLite has no
// text or geo index types; those kinds degrade to plain b-tree indexes.
func (driver *SqliteDriver) CreateIndex(ctx context.Context, schema *core.Schema, index *core.IndexDescriptor, force bool) error {
	name := index.ResolvedName(schema.Collection)
	if force {
		if _, err := driver.exec(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %q", name)); err != nil {
			return fmt.Errorf("sqlite index error: %w", err)
		}
	}

	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}

	columnList := []string{}
	for _, key := range index.Keys {
		direction := "ASC"
		if core.NormalizeOrder(key.Order) < 0 {
			direction = "DESC"
		}
		columnList = append(columnList, fmt.Sprintf("%q %s", key.Field, direction))
	}

	where := ""
	if index.Sparse {
		nullChecks := []string{}
		for _, key := range index.Keys {
			nullChecks = append(nullChecks, fmt.Sprintf("%q IS NOT NULL", key.Field))
		}
		where = " WHERE " + strings.Join(nullChecks, " AND ")
	}

	sqlQuery := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %q ON %s (%s)%s",
		unique, name, driver.formatTable(schema), strings.Join(columnList, ", "), where)
	if _, err := driver.exec(ctx, sqlQuery); err != nil {
		return fmt.Errorf("sqlite index error: %w", err)
	}
	return nil
}

// DropIndexes removes every named index of the table, discovered through
// sqlite_master. Auto-generated primary key indexes cannot be dropped and
// are excluded by the autoindex prefix.
func (driver *SqliteDriver) DropIndexes(ctx context.Context, schema *core.Schema) error {
	sqlQuery := `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_autoindex_%'`
	rows, err := driver.query(ctx, sqlQuery, schema.Collection)
	if err != nil {
		return fmt.Errorf("sqlite index error: %w", err)
	}
	nameList := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite index error: %w", err)
		}
		nameList = append(nameList, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite index error: %w", err)
	}

	for _, name := range nameList {
		if _, err := driver.exec(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %q", name)); err != nil {
			return fmt.Errorf("sqlite index error: %w", err)
		}
	}
	return nil
}

//endregion
