package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

var ErrNoChunk = errors.New("anvil: chunk not found")
var ErrInvalidChunkLength = errors.New("anvil: invalid chunk length")
var ErrInvalidCompression = errors.New("anvil: invalid compression format")

// Compression is the scheme byte stored in front of each chunk payload.
type Compression byte

const (
	CompressionGzip Compression = 1
	CompressionZlib Compression = 2
	CompressionNone Compression = 3
)

// ParseCompression resolves a configured compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zlib", "deflate":
		return CompressionZlib, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompression, name)
	}
}

var regionName = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

func regionFileName(rx, rz int) string {
	return fmt.Sprintf("r.%d.%d.mca", rx, rz)
}

// parseRegionName extracts region coordinates from a file name.
func parseRegionName(name string) (rx, rz int, ok bool) {
	m := regionName.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	rx, _ = strconv.Atoi(m[1])
	rz, _ = strconv.Atoi(m[2])
	return rx, rz, true
}

// regionFile wraps one .mca file. It is not safe for concurrent access;
// the store serializes use.
type regionFile struct {
	r    *region.Region
	Name string
}

func openRegion(dir string, rx, rz int, create bool) (*regionFile, error) {
	name := filepath.Join(dir, regionFileName(rx, rz))
	r, err := region.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		if !create {
			return nil, ErrNoChunk
		}
		r, err = region.Create(name)
	}
	if err != nil {
		return nil, fmt.Errorf("anvil: open %s: %w", name, err)
	}
	return &regionFile{r: r, Name: name}, nil
}

func (f *regionFile) ChunkExists(x, z int) bool {
	return f.r.ExistSector(x, z)
}

// ReadChunk returns a reader over the decompressed payload of the chunk at
// region-local x and z.
func (f *regionFile) ReadChunk(x, z int) (chunk io.Reader, err error) {
	if !f.ChunkExists(x, z) {
		return nil, ErrNoChunk
	}
	data, err := f.r.ReadSector(x, z)
	if err != nil {
		return nil, fmt.Errorf("anvil: read %d,%d in %s: %w", x, z, f.Name, err)
	}
	if len(data) < 1 {
		return nil, ErrInvalidChunkLength
	}

	chunkStream := bytes.NewReader(data[1:])
	switch Compression(data[0]) {
	case CompressionGzip:
		return gzip.NewReader(chunkStream)
	case CompressionZlib:
		return zlib.NewReader(chunkStream)
	case CompressionNone:
		return chunkStream, nil
	default:
		return nil, ErrInvalidCompression
	}
}

// WriteChunk compresses payload and stores it at region-local x and z.
func (f *regionFile) WriteChunk(x, z int, payload []byte, compression Compression) (n int, err error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(compression))
	switch compression {
	case CompressionGzip:
		w := gzip.NewWriter(&buf)
		if _, err = w.Write(payload); err != nil {
			return
		}
		if err = w.Close(); err != nil {
			return
		}
	case CompressionZlib:
		w := zlib.NewWriter(&buf)
		if _, err = w.Write(payload); err != nil {
			return
		}
		if err = w.Close(); err != nil {
			return
		}
	case CompressionNone:
		buf.Write(payload)
	default:
		return 0, ErrInvalidCompression
	}
	if err = f.r.WriteSector(x, z, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("anvil: write %d,%d in %s: %w", x, z, f.Name, err)
	}
	return buf.Len(), nil
}

func (f *regionFile) Close() error {
	return f.r.Close()
}
