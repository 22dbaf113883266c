package record

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdm-linkage/internal/faults"
)

func TestDataset(t *testing.T) {
	ds, err := NewDataset([]Record{
		{ID: 30, Name: "C"},
		{ID: 10, Name: "A"},
		{ID: 20, Name: "B"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, ID(10), ds.At(0).ID)
	assert.Equal(t, ID(30), ds.At(2).ID)

	rec, ok := ds.Get(20)
	require.True(t, ok)
	assert.Equal(t, "B", rec.Name)

	_, ok = ds.Get(15)
	assert.False(t, ok)
	_, ok = ds.Get(99)
	assert.False(t, ok)

	records := ds.Records()
	records[0].Name = "changed"
	assert.Equal(t, "A", ds.At(0).Name, "dataset is not affected by edits to the copy")
}

func TestDatasetDuplicate(t *testing.T) {
	_, err := NewDataset([]Record{{ID: 1}, {ID: 2}, {ID: 1}})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"12", 12, false},
		{"12.0", 12, false},
		{" 7.9 ", 7, false},
		{"1e3", 1000, false},
		{"id", 0, true},
		{"", 0, true},
		{"0", 0, true},
		{"-4", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, faults.ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead(t *testing.T) {
	input := `id,name,address,taxonomy
1.0,John Smith,"1 Main St, Springfield, IL 62701",Physician
2,Jon Smith,"1 Main Street, Springfield, IL 62701",Physician
`
	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Record{ID: 1, Name: "John Smith", Address: "1 Main St, Springfield, IL 62701", Taxonomy: "Physician"}, records[0])
	assert.Equal(t, ID(2), records[1].ID)
}

func TestReadWithoutHeader(t *testing.T) {
	records, err := Read(strings.NewReader("5,A,\"x, y, z\",T\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ID(5), records[0].ID)
}

func TestReadHeaderAnyCase(t *testing.T) {
	records, err := Read(strings.NewReader("\ufeffID, Name ,ADDRESS,Taxonomy\n3,A,\"x, y, z\",T\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ID(3), records[0].ID)
}

func TestReadMalformed(t *testing.T) {
	tests := map[string]string{
		"short row":        "1,A,addr\n",
		"bad id after top": "1,A,B,C\nx,A,B,C\n",
		"bad first id":     "x12,A,B,C\n2,A,B,C\n",
		"partial header":   "id,name,street,taxonomy\n2,A,B,C\n",
		"bad quoting":      "1,\"A,B,C\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(input))
			assert.ErrorIs(t, err, faults.ErrMalformedInput)
		})
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	in := []Record{
		{ID: 2, Name: `O'Neil, "Pat"`, Address: "5 Pine Rd, Dover, DE 19901", Taxonomy: "Dentist"},
		{ID: 1, Name: "John Smith", Address: "1 Main St, Springfield, IL 62701", Taxonomy: "Physician"},
	}
	require.NoError(t, WriteFile(path, in))

	ds, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, in[1], ds.At(0))
	assert.Equal(t, in[0], ds.At(1))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, faults.ErrResource)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "id,name,address,taxonomy\n", buf.String())
}
