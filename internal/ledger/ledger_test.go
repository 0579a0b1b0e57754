package ledger

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/observability/metrics"
)

type memorySink struct {
	name    string
	entries []Entry
	err     error
	closed  bool
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Write(_ context.Context, e Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestRecordFillsIdentityAndFansOut(t *testing.T) {
	first := &memorySink{name: "first"}
	second := &memorySink{name: "second"}
	l := New("", "pharos-testnet", first, second)
	require.NotEmpty(t, l.RunID())

	l.Record(context.Background(), Entry{Wallet: "0xabc", Type: "Wrap", Status: StatusPending, Details: "Wrap 1 PHRS to WPHRS"})

	require.Len(t, first.entries, 1)
	require.Len(t, second.entries, 1)
	got := first.entries[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, l.RunID(), got.RunID)
	assert.Equal(t, "pharos-testnet", got.Network)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, got, second.entries[0])

	require.NoError(t, l.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestRecordSwallowsSinkFailures(t *testing.T) {
	broken := &memorySink{name: "broken-test", err: errors.New("disk full")}
	healthy := &memorySink{name: "healthy"}
	l := New("run-1", "", broken, healthy)

	before := testutil.ToFloat64(metrics.LedgerWriteFailures.WithLabelValues("broken-test"))
	l.Record(context.Background(), Entry{Type: "Send", Status: StatusFailure, Error: "boom"})

	assert.Len(t, healthy.entries, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LedgerWriteFailures.WithLabelValues("broken-test")))

	var nilLedger *Ledger
	nilLedger.Record(context.Background(), Entry{})
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transactions.csv")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		sink, err := NewCSVSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Write(context.Background(), Entry{
			Timestamp: ts, Wallet: "0xabc", Type: "Swap", Status: StatusSuccess,
			TxHash: "0xhash", Details: "Swap 1.5 WPHRS for USDC", GasUsed: 120000,
		}))
		require.NoError(t, sink.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2024-05-01T12:00:00Z", "0xabc", "Swap", "success", "0xhash", "Swap 1.5 WPHRS for USDC", "120000", ""}, rows[1])
}

func TestJSONLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), Entry{ID: "a", Status: StatusPending}))
	require.NoError(t, sink.Write(context.Background(), Entry{ID: "b", Status: StatusSuccess}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var ids []string
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestOpenSinksFromConfig(t *testing.T) {
	dir := t.TempDir()
	sinks, err := OpenSinks(context.Background(), config.LedgerConfig{
		Sinks:     []string{"csv", "jsonl"},
		CSVPath:   filepath.Join(dir, "tx.csv"),
		JSONLPath: filepath.Join(dir, "tx.jsonl"),
	})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "csv", sinks[0].Name())
	assert.Equal(t, "jsonl", sinks[1].Name())
	for _, s := range sinks {
		require.NoError(t, s.Close())
	}

	_, err = OpenSinks(context.Background(), config.LedgerConfig{Sinks: []string{"csv", "kafka"}, CSVPath: filepath.Join(dir, "x.csv")})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeStorageFailure))

	_, err = OpenSinks(context.Background(), config.LedgerConfig{Sinks: []string{"mysql"}})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeStorageFailure))
}
