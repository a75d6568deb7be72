package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// On-disk layout. The vector file holds the raw float32 matrix plus the kind
// chosen at build time; the search structure itself is not serialized and is
// rebuilt on load, which is reproducible because builds are fix-seeded. The
// ID file is a parallel array mapping rows to item IDs and is validated
// against the vector count on load.
const (
	vectorMagic = "SSVX"
	idMagic     = "SSID"
	fileVersion = 1

	maxIDLen = 1 << 16
)

// Save writes the vectors and the parallel ID array to vectorPath and idPath.
// Each file goes through a temporary sibling and an atomic rename, so a
// concurrent reader sees either the old index or the new one, never a torn
// write.
func Save(vectors [][]float32, ids []string, vectorPath, idPath string) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("save index: %d vectors but %d ids", len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("save index: no vectors")
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("save index: vector %d has dim %d, want %d", i, len(v), dim)
		}
	}

	if err := writeAtomic(vectorPath, func(w *bufio.Writer) error {
		return writeVectors(w, vectors)
	}); err != nil {
		return fmt.Errorf("save index vectors: %w", err)
	}
	if err := writeAtomic(idPath, func(w *bufio.Writer) error {
		return writeIDs(w, ids)
	}); err != nil {
		return fmt.Errorf("save index ids: %w", err)
	}
	return nil
}

// Load reads both files, cross-checks their lengths and rebuilds the search
// structure recorded in the vector file header.
func Load(vectorPath, idPath string) (Index, []string, error) {
	vectors, kind, err := readVectors(vectorPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load index vectors: %w", err)
	}
	ids, err := readIDs(idPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load index ids: %w", err)
	}
	if len(ids) != len(vectors) {
		return nil, nil, fmt.Errorf("load index: %d vectors but %d ids", len(vectors), len(ids))
	}
	idx, err := buildKind(vectors, kind)
	if err != nil {
		return nil, nil, err
	}
	return idx, ids, nil
}

func writeAtomic(path string, fill func(*bufio.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeVectors(w *bufio.Writer, vectors [][]float32) error {
	if _, err := w.WriteString(vectorMagic); err != nil {
		return err
	}
	header := []any{
		uint8(fileVersion),
		uint8(tierFor(len(vectors))),
		uint16(0), // reserved
		uint32(len(vectors[0])),
		uint32(len(vectors)),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	buf := make([]byte, 4)
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}

func readVectors(path string) ([][]float32, Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, 0, err
	}
	if string(magic) != vectorMagic {
		return nil, 0, fmt.Errorf("bad magic %q", magic)
	}
	var (
		version  uint8
		kind     uint8
		reserved uint16
		dim      uint32
		count    uint32
	)
	for _, field := range []any{&version, &kind, &reserved, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, 0, err
		}
	}
	if version != fileVersion {
		return nil, 0, fmt.Errorf("unsupported version %d", version)
	}
	if dim == 0 || count == 0 {
		return nil, 0, fmt.Errorf("empty index file")
	}

	vectors := make([][]float32, count)
	buf := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for d := range v {
			v[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*d:]))
		}
		vectors[i] = v
	}
	return vectors, Kind(kind), nil
}

func writeIDs(w *bufio.Writer, ids []string) error {
	if _, err := w.WriteString(idMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(fileVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	for i, id := range ids {
		if len(id) == 0 || len(id) >= maxIDLen {
			return fmt.Errorf("id %d: bad length %d", i, len(id))
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(id))); err != nil {
			return err
		}
		if _, err := w.WriteString(id); err != nil {
			return err
		}
	}
	return nil
}

func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != idMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	ids := make([]string, count)
	for i := range ids {
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("id %d: %w", i, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("id %d: %w", i, err)
		}
		ids[i] = string(buf)
	}
	return ids, nil
}
