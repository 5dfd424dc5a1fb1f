// Package postgres provides the PostgreSQL driver for the argil data layer,
// built on pgx and pgxpool. Conditions compile to parameterized SQL with
// positional placeholders; user values never interpolate into SQL text.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leandroluk/argil/core"
)

//region PostgresDriver

// PostgresDriver implements core.Driver on top of a pgxpool.Pool.
type PostgresDriver struct {
	pool *pgxpool.Pool
}

var _ core.Driver = (*PostgresDriver)(nil)

// NewPostgresDriver opens a connection pool for the given connection string.
func NewPostgresDriver(ctx context.Context, connString string) (*PostgresDriver, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres connect error: %w", err)
	}
	return &PostgresDriver{pool: pool}, nil
}

func (driver *PostgresDriver) formatTable(schema *core.Schema) string {
	if schema.Database != "" {
		return fmt.Sprintf("%q.%q", schema.Database, schema.Collection)
	}
	return fmt.Sprintf("%q", schema.Collection)
}

// buildCondition compiles a condition tree into a SQL clause, appending every
// comparison value to argList. A nil condition compiles to the neutral "1=1".
func (driver *PostgresDriver) buildCondition(condition *core.Condition, argList *[]any) string {
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
		return fmt.Sprintf("%s = $%d", column, len(*argList))
	case core.OpNe:
		if condition.Value == nil {
			return column + " IS NOT NULL"
		}
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s != $%d", column, len(*argList))
	case core.OpGt:
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s > $%d", column, len(*argList))
	case core.OpGte:
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s >= $%d", column, len(*argList))
	case core.OpLt:
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s < $%d", column, len(*argList))
	case core.OpLte:
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s <= $%d", column, len(*argList))
	case core.OpLike:
		*argList = append(*argList, condition.Value)
		return fmt.Sprintf("%s ILIKE $%d", column, len(*argList))
	case core.OpIn:
		return driver.buildListClause(column, "IN", condition.Value, argList)
	case core.OpNin:
		return driver.buildListClause(column, "NOT IN", condition.Value, argList)
	case core.OpExists:
		// SQL has no notion of an absent column; presence maps onto nullness.
		if present, _ := condition.Value.(bool); present {
			return column + " IS NOT NULL"
		}
		return column + " IS NULL"
	}
	return "1=1"
}

func (driver *PostgresDriver) buildListClause(column, keyword string, value any, argList *[]any) string {
	valueList, _ := value.([]any)
	if len(valueList) == 0 {
		// IN over an empty list matches nothing; NOT IN matches everything.
		if keyword == "IN" {
			return "1=0"
		}
		return "1=1"
	}
	placeholderList := []string{}
	for _, v := range valueList {
		*argList = append(*argList, v)
		placeholderList = append(placeholderList, fmt.Sprintf("$%d", len(*argList)))
	}
	return fmt.Sprintf("%s %s (%s)", column, keyword, strings.Join(placeholderList, ", "))
}

//endregion

//region execution helpers

func (driver *PostgresDriver) exec(ctx context.Context, sqlQuery string, args ...any) (int64, error) {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			tag, err := pgTx.transaction.Exec(ctx, sqlQuery, args...)
			if err != nil {
				return 0, err
			}
			return tag.RowsAffected(), nil
		}
	}
	tag, err := driver.pool.Exec(ctx, sqlQuery, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (driver *PostgresDriver) query(ctx context.Context, sqlQuery string, args ...any) (pgx.Rows, error) {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			return pgTx.transaction.Query(ctx, sqlQuery, args...)
		}
	}
	return driver.pool.Query(ctx, sqlQuery, args...)
}

func (driver *PostgresDriver) queryRow(ctx context.Context, sqlQuery string, args ...any) pgx.Row {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			return pgTx.transaction.QueryRow(ctx, sqlQuery, args...)
		}
	}
	return driver.pool.QueryRow(ctx, sqlQuery, args...)
}

func (driver *PostgresDriver) collectRows(rowList pgx.Rows, single bool) ([]core.Record, error) {
	defer rowList.Close()

	columnDescriptionList := rowList.FieldDescriptions()
	var resultList []core.Record

	for rowList.Next() {
		valueList, err := rowList.Values()
		if err != nil {
			return nil, err
		}
		record := make(core.Record, len(columnDescriptionList))
		for i, col := range columnDescriptionList {
			record[string(col.Name)] = valueList[i]
		}
		resultList = append(resultList, record)
		if single {
			break
		}
	}
	return resultList, rowList.Err()
}

func (driver *PostgresDriver) find(ctx context.Context, schema *core.Schema, query *core.Where, single bool) ([]core.Record, error) {
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

	rowList, err := driver.query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, err
	}
	return driver.collectRows(rowList, single)
}

//endregion

//region lifecycle

func (driver *PostgresDriver) Connect(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Ping(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Close(ctx context.Context) error {
	driver.pool.Close()
	return nil
}

func (driver *PostgresDriver) IsConnected(ctx context.Context) bool {
	return driver.pool.Ping(ctx) == nil
}

func (driver *PostgresDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	tx, err := driver.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres transaction error: %w", err)
	}
	return &postgresTransaction{transaction: tx}, nil
}

//endregion

//region operations

// Insert persists one record and returns the canonical row via RETURNING *,
// so backend-computed defaults and assigned keys flow back to the caller.
func (driver *PostgresDriver) Insert(ctx context.Context, schema *core.Schema, record core.Record) (core.Record, error) {
	columnNameList := make([]string, 0, len(record))
	for name := range record {
		columnNameList = append(columnNameList, name)
	}
	sort.Strings(columnNameList)

	quotedList := make([]string, 0, len(columnNameList))
	placeholderList := make([]string, 0, len(columnNameList))
	argList := make([]any, 0, len(columnNameList))
	for i, name := range columnNameList {
		quotedList = append(quotedList, fmt.Sprintf("%q", name))
		placeholderList = append(placeholderList, fmt.Sprintf("$%d", i+1))
		argList = append(argList, record[name])
	}

	sqlQuery := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		driver.formatTable(schema), strings.Join(quotedList, ", "), strings.Join(placeholderList, ", "))

	rowList, err := driver.query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, fmt.Errorf("postgres insert error: %w", err)
	}
	resultList, err := driver.collectRows(rowList, true)
	if err != nil {
		return nil, fmt.Errorf("postgres insert error: %w", err)
	}
	if len(resultList) == 0 {
		return nil, nil
	}
	return resultList[0], nil
}

func (driver *PostgresDriver) FindOne(ctx context.Context, schema *core.Schema, query *core.Where) (core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, true)
	if err != nil {
		return nil, fmt.Errorf("postgres find error: %w", err)
	}
	if len(resultList) == 0 {
		return nil, nil
	}
	return resultList[0], nil
}

func (driver *PostgresDriver) FindMany(ctx context.Context, schema *core.Schema, query *core.Where) ([]core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, false)
	if err != nil {
		return nil, fmt.Errorf("postgres find error: %w", err)
	}
	return resultList, nil
}

func (driver *PostgresDriver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)

	columnNameList := make([]string, 0, len(changes))
	for name := range changes {
		columnNameList = append(columnNameList, name)
	}
	sort.Strings(columnNameList)

	setPartList := []string{}
	for _, column := range columnNameList {
		argList = append(argList, changes[column])
		setPartList = append(setPartList, fmt.Sprintf("%q = $%d", column, len(argList)))
	}

	sqlQuery := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		driver.formatTable(schema), strings.Join(setPartList, ", "), whereClause)

	affected, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, fmt.Errorf("postgres update error: %w", err)
	}
	return affected, nil
}

func (driver *PostgresDriver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("DELETE FROM %s WHERE %s", driver.formatTable(schema), whereClause)

	affected, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, fmt.Errorf("postgres delete error: %w", err)
	}
	return affected, nil
}

func (driver *PostgresDriver) Count(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", driver.formatTable(schema), whereClause)

	var count int64
	if err := driver.queryRow(ctx, sqlQuery, argList...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres count error: %w", err)
	}
	return count, nil
}

func (driver *PostgresDriver) Exists(ctx context.Context, schema *core.Schema, condition *core.Condition) (bool, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)
	sqlQuery := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", driver.formatTable(schema), whereClause)

	var found bool
	if err := driver.queryRow(ctx, sqlQuery, argList...).Scan(&found); err != nil {
		return false, fmt.Errorf("postgres exists error: %w", err)
	}
	return found, nil
}

func (driver *PostgresDriver) Increment(ctx context.Context, schema *core.Schema, condition *core.Condition, field string, delta float64) (int64, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)

	argList = append(argList, delta)
	column := fmt.Sprintf("%q", field)
	sqlQuery := fmt.Sprintf("UPDATE %s SET %s = %s + $%d WHERE %s",
		driver.formatTable(schema), column, column, len(argList), whereClause)

	affected, err := driver.exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, fmt.Errorf("postgres increment error: %w", err)
	}
	return affected, nil
}

// Aggregate treats each pipeline stage as a raw SQL fragment appended after
// the compiled WHERE clause (GROUP BY, HAVING, window clauses). Fragments are
// trusted text from the application, never user input.
func (driver *PostgresDriver) Aggregate(ctx context.Context, schema *core.Schema, condition *core.Condition, pipeline []any) ([]core.Record, error) {
	argList := []any{}
	whereClause := driver.buildCondition(condition, &argList)

	selectClause := "*"
	fragmentList := []string{}
	for _, stage := range pipeline {
		fragment, ok := stage.(string)
		if !ok {
			return nil, fmt.Errorf("postgres aggregate error: pipeline stages must be SQL fragments, got %T", stage)
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

	rowList, err := driver.query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, fmt.Errorf("postgres aggregate error: %w", err)
	}
	resultList, err := driver.collectRows(rowList, false)
	if err != nil {
		return nil, fmt.Errorf("postgres aggregate error: %w", err)
	}
	return resultList, nil
}

//endregion

//region indexes

// CreateIndex compiles one index descriptor to CREATE INDEX. Text indexes use
// a GIN index over to_tsvector, geo indexes use GIST.
func (driver *PostgresDriver) CreateIndex(ctx context.Context, schema *core.Schema, index *core.IndexDescriptor, force bool) error {
	name := index.ResolvedName(schema.Collection)
	if force {
		if _, err := driver.exec(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %q", name)); err != nil {
			return fmt.Errorf("postgres index error: %w", err)
		}
	}

	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}

	var expression string
	switch index.Kind {
	case core.IndexText:
		columnList := []string{}
		for _, key := range index.Keys {
			columnList = append(columnList, fmt.Sprintf("coalesce(%q::text, '')", key.Field))
		}
		expression = fmt.Sprintf("USING GIN (to_tsvector('simple', %s))", strings.Join(columnList, " || ' ' || "))
	case core.IndexGeo:
		columnList := []string{}
		for _, key := range index.Keys {
			columnList = append(columnList, fmt.Sprintf("%q", key.Field))
		}
		expression = fmt.Sprintf("USING GIST (%s)", strings.Join(columnList, ", "))
	default:
		columnList := []string{}
		for _, key := range index.Keys {
			direction := "ASC"
			if core.NormalizeOrder(key.Order) < 0 {
				direction = "DESC"
			}
			columnList = append(columnList, fmt.Sprintf("%q %s", key.Field, direction))
		}
		expression = fmt.Sprintf("(%s)", strings.Join(columnList, ", "))
	}

	where := ""
	if index.Sparse {
		nullChecks := []string{}
		for _, key := range index.Keys {
			nullChecks = append(nullChecks, fmt.Sprintf("%q IS NOT NULL", key.Field))
		}
		where = " WHERE " + strings.Join(nullChecks, " AND ")
	}

	sqlQuery := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %q ON %s %s%s",
		unique, name, driver.formatTable(schema), expression, where)
	if _, err := driver.exec(ctx, sqlQuery); err != nil {
		return fmt.Errorf("postgres index error: %w", err)
	}
	return nil
}

// DropIndexes removes every non-primary index of the table, discovered
// through pg_indexes.
func (driver *PostgresDriver) DropIndexes(ctx context.Context, schema *core.Schema) error {
	sqlQuery := `SELECT indexname FROM pg_indexes WHERE tablename = $1 AND indexname NOT LIKE '%_pkey'`
	rowList, err := driver.query(ctx, sqlQuery, schema.Collection)
	if err != nil {
		return fmt.Errorf("postgres index error: %w", err)
	}
	nameList := []string{}
	for rowList.Next() {
		var name string
		if err := rowList.Scan(&name); err != nil {
			rowList.Close()
			return fmt.Errorf("postgres index error: %w", err)
		}
		nameList = append(nameList, name)
	}
	rowList.Close()
	if err := rowList.Err(); err != nil {
		return fmt.Errorf("postgres index error: %w", err)
	}

	for _, name := range nameList {
		if _, err := driver.exec(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %q", name)); err != nil {
			return fmt.Errorf("postgres index error: %w", err)
		}
	}
	return nil
}

//endregion
