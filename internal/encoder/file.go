package encoder

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	aeerrors "github.com/23skdu/aematch/internal/errors"
)

// Weights file layout: an Arrow IPC file with one row per latent dimension.
const (
	WeightsColumn = "weights"
	BiasColumn    = "bias"

	MetaInputWidth  = "input_width"
	MetaInputHeight = "input_height"
	MetaChannels    = "channels"
	MetaName        = "name"
)

// Load reads a linear encoder from an Arrow IPC weights file.
func Load(path string) (*Linear, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "load_encoder", "cannot open encoder weights").
			WithContext("path", path)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "load_encoder", "not an Arrow IPC file").
			WithContext("path", path)
	}
	defer r.Close()

	schema := r.Schema()
	width, merr := metaInt(schema, MetaInputWidth)
	if merr != nil {
		return nil, merr.WithContext("path", path)
	}
	height, merr := metaInt(schema, MetaInputHeight)
	if merr != nil {
		return nil, merr.WithContext("path", path)
	}
	channels, merr := metaInt(schema, MetaChannels)
	if merr != nil {
		return nil, merr.WithContext("path", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := schema.Metadata().FindKey(MetaName); idx >= 0 {
		name = schema.Metadata().Values()[idx]
	}

	var weights [][]float64
	var bias []float64
	for i := 0; i < r.NumRecords(); i++ {
		rec, rerr := r.Record(i)
		if rerr != nil {
			return nil, aeerrors.WrapInputError(rerr, "load_encoder", "cannot read record batch").
				WithContext("path", path).WithContext("batch", i)
		}
		w, b, serr := readBatch(rec)
		if serr != nil {
			return nil, serr.WithContext("path", path).WithContext("batch", i)
		}
		weights = append(weights, w...)
		bias = append(bias, b...)
	}

	return NewLinear(name, width, height, channels, weights, bias)
}

func metaInt(schema *arrow.Schema, key string) (int, *aeerrors.StructuredError) {
	md := schema.Metadata()
	idx := md.FindKey(key)
	if idx < 0 {
		return 0, aeerrors.NewInputError("load_encoder", "missing schema metadata").WithContext("key", key)
	}
	v, err := strconv.Atoi(md.Values()[idx])
	if err != nil {
		return 0, aeerrors.WrapInputError(err, "load_encoder", "invalid schema metadata").WithContext("key", key)
	}
	return v, nil
}

func readBatch(rec arrow.Record) ([][]float64, []float64, *aeerrors.StructuredError) {
	weightsIdx, biasIdx := -1, -1
	for i, field := range rec.Schema().Fields() {
		switch field.Name {
		case WeightsColumn:
			weightsIdx = i
		case BiasColumn:
			biasIdx = i
		}
	}
	if weightsIdx < 0 {
		return nil, nil, aeerrors.NewInputError("load_encoder", "missing weights column")
	}

	listArr, ok := rec.Column(weightsIdx).(*array.FixedSizeList)
	if !ok {
		return nil, nil, aeerrors.NewInputError("load_encoder", "weights column must be a fixed size list").
			WithContext("type", rec.Column(weightsIdx).DataType().String())
	}
	values, ok := listArr.ListValues().(*array.Float32)
	if !ok {
		return nil, nil, aeerrors.NewInputError("load_encoder", "weights must be float32").
			WithContext("type", listArr.ListValues().DataType().String())
	}

	var biasArr *array.Float32
	if biasIdx >= 0 {
		if biasArr, ok = rec.Column(biasIdx).(*array.Float32); !ok {
			return nil, nil, aeerrors.NewInputError("load_encoder", "bias must be float32").
				WithContext("type", rec.Column(biasIdx).DataType().String())
		}
	}

	rows := int(rec.NumRows())
	raw := values.Float32Values()
	weights := make([][]float64, rows)
	bias := make([]float64, rows)
	for i := 0; i < rows; i++ {
		start, end := listArr.ValueOffsets(i)
		row := make([]float64, end-start)
		for j, v := range raw[start:end] {
			row[j] = float64(v)
		}
		weights[i] = row
		if biasArr != nil {
			bias[i] = float64(biasArr.Value(i))
		}
	}
	return weights, bias, nil
}

// WriteLinear writes enc to path in the format read by Load. Weights are
// stored as float32.
func WriteLinear(path string, enc *Linear) error {
	mem := memory.NewGoAllocator()
	width, height, channels := enc.InputSize()
	md := arrow.NewMetadata(
		[]string{MetaInputWidth, MetaInputHeight, MetaChannels, MetaName},
		[]string{strconv.Itoa(width), strconv.Itoa(height), strconv.Itoa(channels), enc.Name()},
	)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: WeightsColumn, Type: arrow.FixedSizeListOf(int32(enc.InputDim()), arrow.PrimitiveTypes.Float32)},
		{Name: BiasColumn, Type: arrow.PrimitiveTypes.Float32},
	}, &md)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	listBuilder := b.Field(0).(*array.FixedSizeListBuilder)
	valueBuilder := listBuilder.ValueBuilder().(*array.Float32Builder)
	biasBuilder := b.Field(1).(*array.Float32Builder)

	bias := enc.Bias()
	row32 := make([]float32, enc.InputDim())
	for i := 0; i < enc.LatentSize(); i++ {
		for j, v := range enc.Row(i) {
			row32[j] = float32(v)
		}
		listBuilder.Append(true)
		valueBuilder.AppendValues(row32, nil)
		biasBuilder.Append(float32(bias[i]))
	}

	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return aeerrors.WrapInputError(err, "write_encoder", "cannot create weights file").WithContext("path", path)
	}

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		_ = f.Close()
		return aeerrors.WrapInputError(err, "write_encoder", "cannot start IPC writer").WithContext("path", path)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		_ = f.Close()
		return aeerrors.WrapInputError(err, "write_encoder", "cannot write record batch").WithContext("path", path)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return aeerrors.WrapInputError(err, "write_encoder", "cannot finalize IPC file").WithContext("path", path)
	}
	return f.Close()
}
