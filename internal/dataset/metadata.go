package dataset

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	aeerrors "github.com/23skdu/aematch/internal/errors"
)

// MetadataFiles lists the metadata file names probed in a folder, in order.
var MetadataFiles = []string{"infos.yaml", "infos.yml", "infos.json", "infos.parquet"}

const legacyMetadataFile = "infos.pkl"

// Sample is one metadata record: the image name key and its cross-track error.
type Sample struct {
	Name string
	CTE  float64
}

// Metadata is the ordered list of samples of a folder. Order follows the
// metadata file.
type Metadata []Sample

// Names returns the sample names in order.
func (m Metadata) Names() []string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name
	}
	return names
}

// MetadataRecord is the Parquet row layout of infos.parquet.
type MetadataRecord struct {
	Name string  `parquet:"name"`
	CTE  float64 `parquet:"cte"`
}

// FindMetadata returns the path of the metadata file in folder.
func FindMetadata(folder string) (string, error) {
	for _, name := range MetadataFiles {
		path := filepath.Join(folder, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", aeerrors.WrapInputError(err, "find_metadata", "cannot stat metadata file").
				WithContext("path", path)
		}
	}

	if _, err := os.Stat(filepath.Join(folder, legacyMetadataFile)); err == nil {
		return "", aeerrors.NewInputError("find_metadata",
			"pickle metadata is not supported, convert infos.pkl to infos.yaml, infos.json or infos.parquet").
			WithContext("folder", folder)
	}
	return "", aeerrors.NewInputError("find_metadata", "no metadata file found").
		WithContext("folder", folder).
		WithContext("candidates", strings.Join(MetadataFiles, ","))
}

// ReadMetadata locates and reads the metadata file of folder.
func ReadMetadata(folder string) (Metadata, error) {
	path, err := FindMetadata(folder)
	if err != nil {
		return nil, err
	}
	return ReadMetadataFile(path)
}

// ReadMetadataFile reads a metadata file, choosing the decoder by extension.
// YAML and JSON files hold a top level mapping of name to a record with at
// least a numeric cte field.
func ReadMetadataFile(path string) (Metadata, error) {
	var (
		md  Metadata
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		md, err = readMapping(path)
	case ".parquet":
		md, err = readParquet(path)
	default:
		return nil, aeerrors.NewInputError("read_metadata", "unsupported metadata format").
			WithContext("path", path)
	}
	if err != nil {
		return nil, err
	}
	if len(md) == 0 {
		return nil, aeerrors.NewInputError("read_metadata", "metadata has no samples").
			WithContext("path", path)
	}
	if err := checkUnique(md); err != nil {
		return nil, err.WithContext("path", path)
	}
	return md, nil
}

type mappingRecord struct {
	CTE *float64 `yaml:"cte"`
}

// readMapping decodes YAML (and therefore JSON) through yaml.Node so the
// sample order of the file is preserved.
func readMapping(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot read metadata file").
			WithContext("path", path)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot parse metadata file").
			WithContext("path", path)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, aeerrors.NewInputError("read_metadata", "top level must be a mapping of name to record").
			WithContext("path", path).WithContext("line", root.Line)
	}

	md := make(Metadata, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		var rec mappingRecord
		if err := value.Decode(&rec); err != nil {
			return nil, aeerrors.WrapInputError(err, "read_metadata", "invalid record").
				WithContext("path", path).WithContext("name", key.Value).WithContext("line", value.Line)
		}
		if rec.CTE == nil {
			return nil, aeerrors.NewInputError("read_metadata", "record has no cte field").
				WithContext("path", path).WithContext("name", key.Value).WithContext("line", value.Line)
		}
		md = append(md, Sample{Name: key.Value, CTE: *rec.CTE})
	}
	return md, nil
}

func readParquet(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot open metadata file").
			WithContext("path", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot stat metadata file").
			WithContext("path", path)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot open parquet file").
			WithContext("path", path)
	}

	pr := parquet.NewGenericReader[MetadataRecord](pf)
	defer pr.Close()

	rows := make([]MetadataRecord, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		return nil, aeerrors.WrapInputError(err, "read_metadata", "cannot read parquet rows").
			WithContext("path", path)
	}

	md := make(Metadata, n)
	for i, row := range rows[:n] {
		md[i] = Sample{Name: row.Name, CTE: row.CTE}
	}
	return md, nil
}

// WriteParquetMetadata writes md as infos.parquet rows.
func WriteParquetMetadata(w io.Writer, md Metadata) error {
	rows := make([]MetadataRecord, len(md))
	for i, s := range md {
		rows[i] = MetadataRecord{Name: s.Name, CTE: s.CTE}
	}

	pw := parquet.NewGenericWriter[MetadataRecord](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return err
	}
	return pw.Close()
}

func checkUnique(md Metadata) *aeerrors.StructuredError {
	seen := make(map[string]struct{}, len(md))
	for _, s := range md {
		if s.Name == "" {
			return aeerrors.NewInputError("read_metadata", "empty sample name")
		}
		if _, ok := seen[s.Name]; ok {
			return aeerrors.NewInputError("read_metadata", "duplicate sample name").WithContext("name", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
