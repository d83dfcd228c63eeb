package flightsql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	arrowflightsql "github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"polite/internal/db"
	"polite/internal/ddl"
	"polite/pkg/frame"
)

// QueryExecutor materializes a query against the served store.
type QueryExecutor func(ctx context.Context, query string) (*frame.Frame, error)

type queryServer struct {
	arrowflightsql.BaseServer

	driver string
	logger *slog.Logger
	query  QueryExecutor

	mu      sync.Mutex
	tickets map[string]*frame.Frame
}

func newQueryServer(driver string, logger *slog.Logger, query QueryExecutor) *queryServer {
	srv := &queryServer{driver: driver, logger: logger, query: query, tickets: make(map[string]*frame.Frame)}
	_ = srv.RegisterSqlInfo(arrowflightsql.SqlInfoFlightSqlServerName, "polite")
	_ = srv.RegisterSqlInfo(arrowflightsql.SqlInfoFlightSqlServerVersion, "dev")
	_ = srv.RegisterSqlInfo(arrowflightsql.SqlInfoFlightSqlServerArrowVersion, "18")
	_ = srv.RegisterSqlInfo(arrowflightsql.SqlInfoFlightSqlServerSql, true)
	_ = srv.RegisterSqlInfo(arrowflightsql.SqlInfoFlightSqlServerReadOnly, false)
	return srv
}

func (s *queryServer) GetFlightInfoStatement(ctx context.Context, stmt arrowflightsql.StatementQuery, desc *arrowflight.FlightDescriptor) (*arrowflight.FlightInfo, error) {
	f, err := s.query(ctx, stmt.GetQuery())
	if err != nil {
		return nil, err
	}

	handle := uuid.NewString()
	s.mu.Lock()
	s.tickets[handle] = f
	s.mu.Unlock()

	ticket, err := arrowflightsql.CreateStatementQueryTicket([]byte(handle))
	if err != nil {
		s.dropTicket(handle)
		return nil, fmt.Errorf("create statement query ticket: %w", err)
	}
	s.logger.DebugContext(ctx, "statement prepared", "handle", handle, "rows", f.Height())

	return &arrowflight.FlightInfo{
		Schema:           arrowflight.SerializeSchema(f.Schema(), memory.DefaultAllocator),
		FlightDescriptor: desc,
		Endpoint: []*arrowflight.FlightEndpoint{{
			Ticket: &arrowflight.Ticket{Ticket: ticket},
			Location: []*arrowflight.Location{{
				Uri: arrowflight.LocationReuseConnection,
			}},
		}},
		TotalRecords: int64(f.Height()),
		TotalBytes:   -1,
		Ordered:      true,
	}, nil
}

func (s *queryServer) GetSchemaStatement(ctx context.Context, stmt arrowflightsql.StatementQuery, _ *arrowflight.FlightDescriptor) (*arrowflight.SchemaResult, error) {
	f, err := s.query(ctx, stmt.GetQuery())
	if err != nil {
		return nil, err
	}
	defer f.Release()
	return &arrowflight.SchemaResult{Schema: arrowflight.SerializeSchema(f.Schema(), memory.DefaultAllocator)}, nil
}

func (s *queryServer) DoGetStatement(ctx context.Context, queryTicket arrowflightsql.StatementQueryTicket) (*arrow.Schema, <-chan arrowflight.StreamChunk, error) {
	handle := string(queryTicket.GetStatementHandle())

	s.mu.Lock()
	f, ok := s.tickets[handle]
	if ok {
		delete(s.tickets, handle)
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown statement handle")
	}
	defer f.Release()

	return streamRecord(ctx, f.Schema(), f.Record())
}

func (s *queryServer) GetFlightInfoTables(_ context.Context, req arrowflightsql.GetTables, desc *arrowflight.FlightDescriptor) (*arrowflight.FlightInfo, error) {
	return commandInfo(tablesSchema(req.GetIncludeSchema()), desc), nil
}

func (s *queryServer) GetSchemaTables(_ context.Context, req arrowflightsql.GetTables, _ *arrowflight.FlightDescriptor) (*arrowflight.SchemaResult, error) {
	return &arrowflight.SchemaResult{Schema: arrowflight.SerializeSchema(tablesSchema(req.GetIncludeSchema()), memory.DefaultAllocator)}, nil
}

func (s *queryServer) DoGetTables(ctx context.Context, req arrowflightsql.GetTables) (*arrow.Schema, <-chan arrowflight.StreamChunk, error) {
	tables, err := s.query(ctx, buildTablesQuery(s.driver, req))
	if err != nil {
		return nil, nil, err
	}
	defer tables.Release()

	schema := tablesSchema(req.GetIncludeSchema())
	var tableSchemas [][]byte
	if req.GetIncludeSchema() {
		tableSchemas, err = s.loadTableSchemas(ctx, tables)
		if err != nil {
			return nil, nil, err
		}
	}
	record, err := recordFromTables(schema, tables, tableSchemas)
	if err != nil {
		return nil, nil, err
	}
	defer record.Release()
	return streamRecord(ctx, schema, record)
}

func (s *queryServer) GetFlightInfoTableTypes(_ context.Context, desc *arrowflight.FlightDescriptor) (*arrowflight.FlightInfo, error) {
	return commandInfo(tableTypesSchema(), desc), nil
}

func (s *queryServer) DoGetTableTypes(ctx context.Context) (*arrow.Schema, <-chan arrowflight.StreamChunk, error) {
	schema := tableTypesSchema()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"TABLE", "VIEW"}, nil)
	record := b.NewRecord()
	defer record.Release()
	return streamRecord(ctx, schema, record)
}

// releaseTickets drops statements that were prepared but never fetched.
func (s *queryServer) releaseTickets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, f := range s.tickets {
		f.Release()
		delete(s.tickets, handle)
	}
}

func (s *queryServer) dropTicket(handle string) {
	s.mu.Lock()
	f, ok := s.tickets[handle]
	delete(s.tickets, handle)
	s.mu.Unlock()
	if ok {
		f.Release()
	}
}

// loadTableSchemas probes every listed table with an empty SELECT so the
// advertised schema matches what statement queries stream.
func (s *queryServer) loadTableSchemas(ctx context.Context, tables *frame.Frame) ([][]byte, error) {
	names, err := tables.Column("table_name")
	if err != nil {
		return nil, err
	}
	out := make([][]byte, tables.Height())
	for i := range out {
		name, _ := names.Text(i)
		probe, err := s.query(ctx, "SELECT * FROM "+ddl.QuoteIdentifier(name)+" LIMIT 0")
		if err != nil {
			return nil, fmt.Errorf("schema of %s: %w", name, err)
		}
		out[i] = arrowflight.SerializeSchema(annotateSchema(name, probe.Schema()), memory.DefaultAllocator)
		probe.Release()
	}
	return out, nil
}

func annotateSchema(table string, schema *arrow.Schema) *arrow.Schema {
	fields := make([]arrow.Field, schema.NumFields())
	for i, field := range schema.Fields() {
		field.Metadata = arrow.NewMetadata(
			[]string{arrowflightsql.TableNameKey, arrowflightsql.TypeNameKey, arrowflightsql.IsReadOnlyKey, arrowflightsql.IsSearchableKey},
			[]string{table, frame.KindOf(field.Type).String(), "0", "1"},
		)
		fields[i] = field
	}
	return arrow.NewSchema(fields, nil)
}

func commandInfo(schema *arrow.Schema, desc *arrowflight.FlightDescriptor) *arrowflight.FlightInfo {
	return &arrowflight.FlightInfo{
		Schema:           arrowflight.SerializeSchema(schema, memory.DefaultAllocator),
		FlightDescriptor: desc,
		Endpoint: []*arrowflight.FlightEndpoint{{
			Ticket: &arrowflight.Ticket{Ticket: desc.Cmd},
			Location: []*arrowflight.Location{{
				Uri: arrowflight.LocationReuseConnection,
			}},
		}},
		TotalRecords: -1,
		TotalBytes:   -1,
		Ordered:      true,
	}
}

// streamRecord retains record for the lifetime of the stream.
func streamRecord(ctx context.Context, schema *arrow.Schema, record arrow.Record) (*arrow.Schema, <-chan arrowflight.StreamChunk, error) {
	rdr, err := array.NewRecordReader(schema, []arrow.Record{record})
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan arrowflight.StreamChunk)
	go arrowflight.StreamChunksFromReader(ctx, rdr, ch)
	return schema, ch, nil
}

func tablesSchema(includeSchema bool) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "catalog_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "db_schema_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "table_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "table_type", Type: arrow.BinaryTypes.String, Nullable: false},
	}
	if includeSchema {
		fields = append(fields, arrow.Field{Name: "table_schema", Type: arrow.BinaryTypes.Binary, Nullable: false})
	}
	return arrow.NewSchema(fields, nil)
}

func tableTypesSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{{Name: "table_type", Type: arrow.BinaryTypes.String, Nullable: false}}, nil)
}

// recordFromTables copies the listing into the Flight SQL GetTables layout.
// The listing frame has catalog, schema, name and type columns in order.
func recordFromTables(schema *arrow.Schema, tables *frame.Frame, tableSchemas [][]byte) (arrow.Record, error) {
	if tables.Width() != 4 {
		return nil, fmt.Errorf("table listing has %d columns, expected 4", tables.Width())
	}
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	cols := make([]*frame.Series, 4)
	for col := range cols {
		cols[col] = tables.ColumnAt(col)
		defer cols[col].Release()
	}

	for row := 0; row < tables.Height(); row++ {
		for col, series := range cols {
			sb := b.Field(col).(*array.StringBuilder)
			switch {
			case !series.IsNull(row):
				sb.Append(fmt.Sprint(series.Value(row)))
			case col < 2:
				sb.AppendNull()
			default:
				sb.Append("")
			}
		}
		if tableSchemas != nil {
			b.Field(4).(*array.BinaryBuilder).Append(tableSchemas[row])
		}
	}
	return b.NewRecord(), nil
}

func buildTablesQuery(driver string, req arrowflightsql.GetTables) string {
	var query string
	var filters []string
	nameCol, typeCol := "name", "UPPER(type)"
	if driver == db.DriverDuckDB {
		query = "SELECT table_catalog, table_schema, table_name, " +
			"CASE table_type WHEN 'BASE TABLE' THEN 'TABLE' ELSE table_type END AS table_type " +
			"FROM information_schema.tables"
		nameCol = "table_name"
		typeCol = "(CASE table_type WHEN 'BASE TABLE' THEN 'TABLE' ELSE table_type END)"
		if catalog := req.GetCatalog(); catalog != nil {
			filters = append(filters, "table_catalog = "+ddl.QuoteLiteral(*catalog))
		}
		if pattern := req.GetDBSchemaFilterPattern(); pattern != nil {
			filters = append(filters, "table_schema LIKE "+ddl.QuoteLiteral(*pattern))
		}
	} else {
		query = "SELECT NULL AS catalog_name, 'main' AS db_schema_name, name AS table_name, " +
			"UPPER(type) AS table_type FROM sqlite_master"
		filters = append(filters, "type IN ('table', 'view')", "name NOT LIKE 'sqlite\\_%' ESCAPE '\\'")
	}

	if pattern := req.GetTableNameFilterPattern(); pattern != nil {
		filters = append(filters, nameCol+" LIKE "+ddl.QuoteLiteral(*pattern))
	}
	if tableTypes := req.GetTableTypes(); len(tableTypes) > 0 {
		literals := make([]string, 0, len(tableTypes))
		for _, tableType := range tableTypes {
			normalized := strings.ToUpper(strings.TrimSpace(tableType))
			if normalized == "" {
				continue
			}
			literals = append(literals, ddl.QuoteLiteral(normalized))
		}
		if len(literals) > 0 {
			filters = append(filters, fmt.Sprintf("%s IN (%s)", typeCol, strings.Join(literals, ", ")))
		}
	}

	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	if driver == db.DriverDuckDB {
		return query + " ORDER BY table_catalog, table_schema, table_name"
	}
	return query + " ORDER BY name"
}
