package journal

import (
	"bufio"
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/tokenbridge/journal/codec"
	"github.com/outofforest/tokenbridge/journal/format"
)

const (
	entitiesPerFile = 10_000

	magic      uint32 = 0x4a425442 // "BTBJ"
	version    uint8  = 1
	headerSize        = 4 + 1 + 8 + 8
)

// Open opens the journal stored in dir and returns entities recorded so far, in the order they were appended.
func Open(dir string) (*Journal, []any, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	indexes, err := listFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	m := format.NewMarshaller()
	var entities []any
	for i, fileIndex := range indexes[:max(len(indexes), 1)-1] {
		if fileIndex != uint64(i) {
			return nil, nil, errors.Errorf("journal file %d is missing", i)
		}
		es, err := readFile(dir, fileIndex, m)
		if err != nil {
			return nil, nil, err
		}
		entities = append(entities, es...)
	}

	j := &Journal{
		dir: dir,
		m:   m,
	}

	if len(indexes) == 0 {
		if err := j.create(0); err != nil {
			return nil, nil, err
		}
		return j, entities, nil
	}

	fileIndex := indexes[len(indexes)-1]
	if fileIndex != uint64(len(indexes)-1) {
		return nil, nil, errors.Errorf("journal file %d is missing", len(indexes)-1)
	}

	// File without complete header is left by interrupted create, it contains no entities.
	info, err := os.Stat(filePath(dir, fileIndex))
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if info.Size() < headerSize {
		if err := os.Remove(filePath(dir, fileIndex)); err != nil {
			return nil, nil, errors.WithStack(err)
		}
		if err := j.create(fileIndex); err != nil {
			return nil, nil, err
		}
		return j, entities, nil
	}

	es, err := j.open(fileIndex)
	if err != nil {
		return nil, nil, err
	}
	return j, append(entities, es...), nil
}

// Journal is an append-only, checksummed log of entities.
type Journal struct {
	dir string
	m   proton.Marshaller

	mu        sync.Mutex
	f         *os.File
	fileIndex uint64
	count     uint64
	encoder   *codec.Encoder
	err       error
}

// Append writes entities to the journal. Entities are on disk once the method returns.
// If write fails, the file is truncated back to the last complete batch. If even that fails,
// the journal refuses all the subsequent appends.
func (j *Journal) Append(entities ...any) error {
	if len(entities) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.err != nil {
		return errors.Wrap(j.err, "journal is broken")
	}

	if j.count >= entitiesPerFile {
		if err := j.f.Close(); err != nil {
			j.err = errors.WithStack(err)
			return j.err
		}
		if err := j.create(j.fileIndex + 1); err != nil {
			j.err = err
			return err
		}
	}

	offset, err := j.f.Seek(0, io.SeekCurrent)
	if err != nil {
		j.err = errors.WithStack(err)
		return j.err
	}
	if err := j.encoder.Encode(entities...); err != nil {
		if rErr := j.rollback(offset); rErr != nil {
			j.err = rErr
		}
		return err
	}
	j.count += uint64(len(entities))
	return nil
}

func (j *Journal) rollback(offset int64) error {
	if err := j.f.Truncate(offset); err != nil {
		return errors.WithStack(err)
	}
	_, err := j.f.Seek(offset, io.SeekStart)
	return errors.WithStack(err)
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return errors.WithStack(j.f.Close())
}

func (j *Journal) create(fileIndex uint64) error {
	f, err := os.OpenFile(filePath(j.dir, fileIndex), os.O_RDWR|os.O_CREATE|os.O_EXCL|os.O_SYNC, 0o600)
	if err != nil {
		return errors.WithStack(err)
	}

	header := newHeader(fileIndex)
	if _, err := f.Write(header); err != nil {
		_ = f.Close()
		_ = os.Remove(filePath(j.dir, fileIndex))
		return errors.WithStack(err)
	}

	j.f = f
	j.fileIndex = fileIndex
	j.count = 0
	j.encoder = codec.NewEncoder(headerChecksum(header), f, j.m)
	return nil
}

func (j *Journal) open(fileIndex uint64) ([]any, error) {
	f, err := os.OpenFile(filePath(j.dir, fileIndex), os.O_RDWR|os.O_SYNC, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	n, checksum, entities, err := read(f, fileIndex, j.m)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	// Torn tail left by interrupted write is dropped.
	if err := f.Truncate(int64(headerSize + n)); err != nil {
		_ = f.Close()
		return nil, errors.WithStack(err)
	}
	if _, err := f.Seek(int64(headerSize+n), io.SeekStart); err != nil {
		_ = f.Close()
		return nil, errors.WithStack(err)
	}

	j.f = f
	j.fileIndex = fileIndex
	j.count = uint64(len(entities))
	j.encoder = codec.NewEncoder(checksum, f, j.m)
	return entities, nil
}

func readFile(dir string, fileIndex uint64, m proton.Marshaller) ([]any, error) {
	f, err := os.Open(filePath(dir, fileIndex))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	n, _, entities, err := read(f, fileIndex, m)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if uint64(info.Size()) != headerSize+n {
		return nil, errors.Errorf("journal file %d is corrupted at offset %d", fileIndex, headerSize+n)
	}
	return entities, nil
}

func read(f *os.File, fileIndex uint64, m proton.Marshaller) (uint64, uint64, []any, error) {
	r := bufio.NewReader(f)

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, nil, errors.Wrapf(err, "reading header of journal file %d failed", fileIndex)
	}
	if err := verifyHeader(header, fileIndex); err != nil {
		return 0, 0, nil, err
	}

	decoder := codec.NewDecoder(headerChecksum(header), r, m)
	var entities []any
	var processed uint64
	for {
		n, e, err := decoder.Decode()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return processed, decoder.Checksum(), entities, nil
		default:
			return 0, 0, nil, errors.Wrapf(err, "decoding journal file %d failed", fileIndex)
		}

		processed = n
		entities = append(entities, e)
	}
}

func newHeader(fileIndex uint64) []byte {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header, magic)
	header[4] = version
	binary.LittleEndian.PutUint64(header[5:], fileIndex)
	binary.LittleEndian.PutUint64(header[13:], xxhash.Sum64(header[:13]))
	return header
}

func verifyHeader(header []byte, fileIndex uint64) error {
	switch {
	case binary.LittleEndian.Uint32(header) != magic:
		return errors.Errorf("journal file %d: invalid magic", fileIndex)
	case header[4] != version:
		return errors.Errorf("journal file %d: unsupported version %d", fileIndex, header[4])
	case binary.LittleEndian.Uint64(header[13:]) != xxhash.Sum64(header[:13]):
		return errors.Errorf("journal file %d: invalid header checksum", fileIndex)
	case binary.LittleEndian.Uint64(header[5:]) != fileIndex:
		return errors.Errorf("journal file %d: file index mismatch", fileIndex)
	}
	return nil
}

func headerChecksum(header []byte) uint64 {
	return binary.LittleEndian.Uint64(header[13:])
}

func filePath(dir string, fileIndex uint64) string {
	return filepath.Join(dir, strconv.FormatUint(fileIndex, 10))
}

func listFiles(dir string) ([]uint64, error) {
	var indexes []uint64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			return errors.Errorf("unexpected directory: %s", path)
		}
		fi, err := strconv.ParseUint(d.Name(), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid file name: %s", path)
		}
		indexes = append(indexes, fi)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(indexes)
	return indexes, nil
}
