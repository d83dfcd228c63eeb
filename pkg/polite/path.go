package polite

import (
	"context"

	"polite/pkg/frame"
)

// LoadFrame connects to path, materializes query and closes the connection.
// Every failure is reported as KindLoad wrapping the underlying error, whose
// kind stays visible to IsKind.
func LoadFrame(ctx context.Context, path, query string, opts ...QueryOption) (*frame.Frame, error) {
	conn, err := Connect(ctx, path)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Path: displayPath(path), SQL: query, Err: err}
	}
	defer conn.Close() //nolint:errcheck

	f, err := ToFrame(ctx, conn, query, opts...)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Path: displayPath(path), SQL: query, Err: err}
	}
	return f, nil
}

// SaveFrame connects to path, persists f into table and closes the
// connection. Connection failures are KindConnect, persistence failures
// KindSave.
func SaveFrame(ctx context.Context, path, table string, f *frame.Frame, opts ...PersistOption) error {
	conn, err := Connect(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	return FromFrame(ctx, conn, table, f, opts...)
}

func displayPath(path string) string {
	if path == "" {
		return MemoryPath
	}
	return path
}
