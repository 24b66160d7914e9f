package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"beanScope/internal/model"
)

var testWell = common.HexToAddress("0xBEA0e11282e2bB5893bEcE110cF199501e872bAd")

type fakeSource struct {
	chainID   int64
	latest    uint64
	logs      []types.Log
	failures  int
	queries   []BlockRange
	tsQueries int
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	f.tsQueries++
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("429 too many requests")
	}
	f.queries = append(f.queries, BlockRange{From: from, To: to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type captureSink struct {
	batches [][]model.LogRecord
}

func (c *captureSink) PutLogBatch(logs []model.LogRecord) error {
	c.batches = append(c.batches, logs)
	return nil
}

func testLog(block uint64, txIndex, index uint) types.Log {
	return types.Log{
		Address:     testWell,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block*100) + int64(txIndex))),
		TxIndex:     txIndex,
		Index:       index,
	}
}

func TestRunnerWritesSortedDedupedBatches(t *testing.T) {
	removed := testLog(12, 0, 9)
	removed.Removed = true
	source := &fakeSource{
		chainID:  1,
		latest:   13,
		failures: 1,
		logs: []types.Log{
			testLog(11, 1, 4),
			testLog(11, 0, 2),
			testLog(11, 0, 2),
			testLog(10, 0, 0),
			removed,
		},
	}
	sink := &captureSink{}
	runner := NewRunner(RunConfig{
		FromBlock:    10,
		Addresses:    []common.Address{testWell},
		BatchSize:    2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, source, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.batches) != 2 {
		t.Fatalf("batches: %d", len(sink.batches))
	}

	first := sink.batches[0]
	if len(first) != 3 {
		t.Fatalf("first batch size: %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if !first[i-1].Position().Less(first[i].Position()) {
			t.Fatalf("batch not in chain order: %v", first)
		}
	}
	if first[0].Address != "0xbea0e11282e2bb5893bece110cf199501e872bad" {
		t.Fatalf("address not normalized: %s", first[0].Address)
	}
	if first[0].Timestamp != 1_700_000_010 || first[0].ChainID != 1 {
		t.Fatalf("record context mismatch: %+v", first[0])
	}
	if len(sink.batches[1]) != 0 {
		t.Fatalf("removed log written: %+v", sink.batches[1])
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, true).Save(1, 20); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	source := &fakeSource{chainID: 1, latest: 25}
	runner := NewRunner(RunConfig{
		FromBlock:         10,
		Addresses:         []common.Address{testWell},
		BatchSize:         100,
		CheckpointPath:    path,
		CheckpointEnabled: true,
	}, source, &captureSink{}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.queries) != 1 || source.queries[0].From != 21 || source.queries[0].To != 25 {
		t.Fatalf("queries: %+v", source.queries)
	}

	cp, ok, err := NewCheckpointStore(path, true).Load(1)
	if err != nil || !ok || cp.LastProcessedBlock != 25 {
		t.Fatalf("checkpoint after run: %+v ok=%v err=%v", cp, ok, err)
	}
}

func TestCheckpointRejectsOtherChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, true)
	if err := store.Save(1, 20); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	if _, _, err := store.Load(56); err == nil {
		t.Fatalf("expected chain mismatch error")
	}
}

func TestRunnerGivesUpAfterRetries(t *testing.T) {
	source := &fakeSource{chainID: 1, latest: 10, failures: 5}
	runner := NewRunner(RunConfig{
		FromBlock:    10,
		Addresses:    []common.Address{testWell},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, source, &captureSink{}, nil)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected filter error")
	}
}
