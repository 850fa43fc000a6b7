package database

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// fakeConn implements the driver.Conn methods the constructor uses; any
// other call panics on the nil embedded interface.
type fakeConn struct {
	driver.Conn
	pingErr error
	execErr error
	execs   int
	closed  int
}

func (f *fakeConn) Ping(context.Context) error { return f.pingErr }

func (f *fakeConn) Exec(ctx context.Context, query string, args ...any) error {
	f.execs++
	return f.execErr
}

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

func TestNewClickHouseDBClosesConnOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		conn       *fakeConn
		wantErr    bool
		wantClosed int
	}{
		{"ping fails", &fakeConn{pingErr: errors.New("refused")}, true, 1},
		{"schema fails", &fakeConn{execErr: errors.New("readonly")}, true, 1},
		{"ok", &fakeConn{}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := newClickHouseDB(tt.conn, "localhost:9000")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.conn.closed != tt.wantClosed {
				t.Errorf("Close calls = %d, want %d", tt.conn.closed, tt.wantClosed)
			}
			if !tt.wantErr {
				if tt.conn.execs != len(AllTables()) {
					t.Errorf("Exec calls = %d, want %d", tt.conn.execs, len(AllTables()))
				}
				_ = db.Close()
			}
		})
	}
}
