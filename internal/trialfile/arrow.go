package trialfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/trials"
)

// Schema metadata keys.
const (
	metaID        = "psiz.id"
	metaKind      = "psiz.kind"
	metaCreatedAt = "psiz.created_at"
	metaConfigs   = "psiz.configs"
	metaConfigIdx = "psiz.config_idx"
)

// Column order of the trial table.
const (
	colStimulusSet = iota
	colNReference
	colNSelect
	colIsRanked
	colGroupID
	colSessionID
)

func trialSchema(md arrow.Metadata) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "stimulus_set", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
		{Name: "n_reference", Type: arrow.PrimitiveTypes.Int32},
		{Name: "n_select", Type: arrow.PrimitiveTypes.Int32},
		{Name: "is_ranked", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "group_id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "session_id", Type: arrow.PrimitiveTypes.Int32},
	}, &md)
}

// WriteArrow writes r as an Arrow IPC file holding one row per trial. The
// configuration table travels as JSON in the schema metadata.
func WriteArrow(path string, r *Record) error {
	configs, err := json.Marshal(r.Configs)
	if err != nil {
		return fmt.Errorf("marshaling configs: %w", err)
	}
	configIdx, err := json.Marshal(r.ConfigIdx)
	if err != nil {
		return fmt.Errorf("marshaling config index: %w", err)
	}
	md := arrow.NewMetadata(
		[]string{metaID, metaKind, metaCreatedAt, metaConfigs, metaConfigIdx},
		[]string{r.ID, r.Kind.String(), r.CreatedAt.Format(time.RFC3339Nano), string(configs), string(configIdx)},
	)
	schema := trialSchema(md)

	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	lb := b.Field(colStimulusSet).(*array.ListBuilder)
	vb := lb.ValueBuilder().(*array.Int32Builder)
	nRef := b.Field(colNReference).(*array.Int32Builder)
	nSel := b.Field(colNSelect).(*array.Int32Builder)
	ranked := b.Field(colIsRanked).(*array.BooleanBuilder)
	group := b.Field(colGroupID).(*array.Int32Builder)
	session := b.Field(colSessionID).(*array.Int32Builder)

	for i, row := range r.StimulusSet {
		lb.Append(true)
		for _, v := range row {
			vb.Append(int32(v))
		}
		nRef.Append(int32(at(r.NReference, i, 0)))
		nSel.Append(int32(at(r.NSelect, i, constants.DefaultNSelect)))
		ranked.Append(atBool(r.IsRanked, i))
		group.Append(int32(at(r.GroupID, i, constants.DefaultGroupID)))
		session.Append(int32(at(r.SessionID, i, constants.DefaultSessionID)))
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// ReadArrow reads a file written by WriteArrow.
func ReadArrow(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("opening arrow reader: %w", err)
	}
	defer reader.Close()

	r, err := recordFromMetadata(reader.Schema().Metadata())
	if err != nil {
		return nil, err
	}
	observed := r.Kind == constants.KindObservations

	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading arrow record %d: %w", i, err)
		}
		if int(rec.NumCols()) != colSessionID+1 {
			return nil, fmt.Errorf("arrow record %d: expected %d columns, got %d", i, colSessionID+1, rec.NumCols())
		}

		lists, ok := rec.Column(colStimulusSet).(*array.List)
		if !ok {
			return nil, fmt.Errorf("arrow record %d: stimulus_set is %s", i, rec.Column(colStimulusSet).DataType())
		}
		values := lists.ListValues().(*array.Int32)
		nRef := rec.Column(colNReference).(*array.Int32)
		nSel := rec.Column(colNSelect).(*array.Int32)
		ranked := rec.Column(colIsRanked).(*array.Boolean)
		group := rec.Column(colGroupID).(*array.Int32)
		session := rec.Column(colSessionID).(*array.Int32)

		for j := 0; j < int(rec.NumRows()); j++ {
			start, end := lists.ValueOffsets(j)
			row := make([]int, 0, end-start)
			for k := start; k < end; k++ {
				row = append(row, int(values.Value(int(k))))
			}
			r.StimulusSet = append(r.StimulusSet, row)
			r.NReference = append(r.NReference, int(nRef.Value(j)))
			r.NSelect = append(r.NSelect, int(nSel.Value(j)))
			r.IsRanked = append(r.IsRanked, ranked.Value(j))
			if observed {
				r.GroupID = append(r.GroupID, int(group.Value(j)))
				r.SessionID = append(r.SessionID, int(session.Value(j)))
			}
		}
	}
	return r, nil
}

func recordFromMetadata(md arrow.Metadata) (*Record, error) {
	get := func(key string) (string, bool) {
		idx := md.FindKey(key)
		if idx < 0 {
			return "", false
		}
		return md.Values()[idx], true
	}

	kind, ok := get(metaKind)
	if !ok {
		return nil, fmt.Errorf("arrow schema missing %s: %w", metaKind, ErrUnknownFormat)
	}
	r := &Record{Kind: constants.Kind(kind)}
	r.ID, _ = get(metaID)

	if ts, ok := get(metaCreatedAt); ok {
		createdAt, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", metaCreatedAt, err)
		}
		r.CreatedAt = createdAt
	}
	if raw, ok := get(metaConfigs); ok {
		var configs []trials.Config
		if err := json.Unmarshal([]byte(raw), &configs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", metaConfigs, err)
		}
		r.Configs = configs
	}
	if raw, ok := get(metaConfigIdx); ok {
		var idx []int
		if err := json.Unmarshal([]byte(raw), &idx); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", metaConfigIdx, err)
		}
		r.ConfigIdx = idx
	}
	return r, nil
}

func at(values []int, i, def int) int {
	if i < len(values) {
		return values[i]
	}
	return def
}

func atBool(values []bool, i int) bool {
	if i < len(values) {
		return values[i]
	}
	return constants.DefaultIsRanked
}
