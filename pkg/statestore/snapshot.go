package statestore

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
)

// Snapshot file format version.
const snapshotVersion uint32 = 1

// Snapshot file magic bytes.
var snapshotMagic = []byte{'X', '1', 'S', 'B'} // X1 Sentry Baseline

// SnapshotHeader contains metadata about a baseline snapshot.
type SnapshotHeader struct {
	// Version is the snapshot format version.
	Version uint32

	// Revision is the baseline revision at snapshot time.
	Revision uint64

	// Count is the number of accounts in the snapshot.
	Count uint64

	// Digest is the hash of all entries, in sorted key order.
	Digest types.Hash
}

// snapshotWriter writes a baseline to a snapshot file.
// Format:
//   - Magic (4 bytes): "X1SB"
//   - Version (4 bytes, little-endian)
//   - Revision (8 bytes, little-endian)
//   - Count (8 bytes, little-endian)
//   - Digest (32 bytes)
//   - Entries (zstd compressed), each:
//   - Pubkey (32 bytes)
//   - EntrySize (4 bytes, little-endian)
//   - Entry (variable, encoded account)
//
// Count and Digest are rewritten when the writer closes.
type snapshotWriter struct {
	file   *os.File
	zw     *zstd.Encoder
	writer *bufio.Writer
	header SnapshotHeader
	digest hash.Hash
}

func newSnapshotWriter(path string, revision uint64) (*snapshotWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	sw := &snapshotWriter{
		file: file,
		header: SnapshotHeader{
			Version:  snapshotVersion,
			Revision: revision,
		},
		digest: sha256.New(),
	}

	// Placeholder header, rewritten at close.
	if err := sw.writeHeader(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}

	sw.zw, err = zstd.NewWriter(file)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("init zstd writer: %w", err)
	}
	sw.writer = bufio.NewWriter(sw.zw)
	return sw, nil
}

func (sw *snapshotWriter) writeHeader() error {
	if _, err := sw.file.Write(snapshotMagic); err != nil {
		return err
	}
	buf := make([]byte, 52) // 4 + 8 + 8 + 32
	binary.LittleEndian.PutUint32(buf[0:], sw.header.Version)
	binary.LittleEndian.PutUint64(buf[4:], sw.header.Revision)
	binary.LittleEndian.PutUint64(buf[12:], sw.header.Count)
	copy(buf[20:], sw.header.Digest[:])
	_, err := sw.file.Write(buf)
	return err
}

func (sw *snapshotWriter) writeAccount(acc *account.Account) error {
	entry := encodeEntry(acc)

	if _, err := sw.writer.Write(acc.Key[:]); err != nil {
		return err
	}
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(entry)))
	if _, err := sw.writer.Write(sizeBuf); err != nil {
		return err
	}
	if _, err := sw.writer.Write(entry); err != nil {
		return err
	}

	sw.digest.Write(acc.Key[:])
	sw.digest.Write(entry)
	sw.header.Count++
	return nil
}

func (sw *snapshotWriter) close() error {
	if err := sw.writer.Flush(); err != nil {
		return err
	}
	if err := sw.zw.Close(); err != nil {
		return err
	}

	copy(sw.header.Digest[:], sw.digest.Sum(nil))
	if _, err := sw.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := sw.writeHeader(); err != nil {
		return err
	}
	return sw.file.Close()
}

// snapshotReader reads a baseline snapshot file.
type snapshotReader struct {
	file   *os.File
	zr     *zstd.Decoder
	reader *bufio.Reader
	Header SnapshotHeader
	read   uint64
}

func openSnapshot(path string) (*snapshotReader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	sr := &snapshotReader{file: file}
	if err := sr.readHeader(); err != nil {
		file.Close()
		return nil, err
	}

	sr.zr, err = zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("init zstd reader: %w", err)
	}
	sr.reader = bufio.NewReader(sr.zr)
	return sr, nil
}

func (sr *snapshotReader) readHeader() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(sr.file, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != string(snapshotMagic) {
		return fmt.Errorf("invalid snapshot magic: %x", magic)
	}

	buf := make([]byte, 52)
	if _, err := io.ReadFull(sr.file, buf); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	sr.Header.Version = binary.LittleEndian.Uint32(buf[0:])
	if sr.Header.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d", sr.Header.Version)
	}
	sr.Header.Revision = binary.LittleEndian.Uint64(buf[4:])
	sr.Header.Count = binary.LittleEndian.Uint64(buf[12:])
	copy(sr.Header.Digest[:], buf[20:])
	return nil
}

// readAccount returns io.EOF after the last entry.
func (sr *snapshotReader) readAccount() (types.Pubkey, []byte, error) {
	if sr.read >= sr.Header.Count {
		return types.Pubkey{}, nil, io.EOF
	}

	var key types.Pubkey
	if _, err := io.ReadFull(sr.reader, key[:]); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read pubkey: %w", err)
	}

	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(sr.reader, sizeBuf); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read size: %w", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf)

	// Bound allocation: serialized account plus framing overhead.
	const maxEntrySize = account.MaxDataSize + 128
	if size > maxEntrySize {
		return types.Pubkey{}, nil, fmt.Errorf("entry size %d exceeds maximum %d", size, maxEntrySize)
	}

	entry := make([]byte, size)
	if _, err := io.ReadFull(sr.reader, entry); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read entry: %w", err)
	}
	sr.read++
	return key, entry, nil
}

func (sr *snapshotReader) close() error {
	if sr.zr != nil {
		sr.zr.Close()
	}
	return sr.file.Close()
}

// WriteSnapshot writes the store's full contents to a snapshot file.
func WriteSnapshot(st Store, path string) error {
	sw, err := newSnapshotWriter(path, st.Revision())
	if err != nil {
		return err
	}

	err = st.Iterate(func(acc *account.Account) error {
		return sw.writeAccount(acc)
	})
	if err != nil {
		sw.file.Close()
		os.Remove(path)
		return fmt.Errorf("write accounts: %w", err)
	}
	return sw.close()
}

// LoadSnapshot replaces the store's contents with the snapshot's entries
// and verifies the digest.
func LoadSnapshot(st Store, path string) error {
	sr, err := openSnapshot(path)
	if err != nil {
		return err
	}
	defer sr.close()

	// Clear existing entries.
	var stale []types.Pubkey
	err = st.Iterate(func(acc *account.Account) error {
		stale = append(stale, acc.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, key := range stale {
		if err := st.Delete(key); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
	}

	digest := sha256.New()
	for {
		key, entry, err := sr.readAccount()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read account: %w", err)
		}
		digest.Write(key[:])
		digest.Write(entry)

		acc, err := decodeEntry(key, entry)
		if err != nil {
			return fmt.Errorf("decode account %s: %w", key, err)
		}
		if err := st.Put(acc); err != nil {
			return fmt.Errorf("put account: %w", err)
		}
	}

	var computed types.Hash
	copy(computed[:], digest.Sum(nil))
	if computed != sr.Header.Digest {
		return fmt.Errorf("snapshot digest mismatch: header %s, computed %s",
			sr.Header.Digest, computed)
	}

	return st.SetRevision(sr.Header.Revision)
}

// ReadSnapshotHeader returns the header of a snapshot file without
// loading its entries.
func ReadSnapshotHeader(path string) (*SnapshotHeader, error) {
	sr, err := openSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer sr.close()
	return &sr.Header, nil
}

// SnapshotFilename returns the standard filename for a baseline snapshot.
func SnapshotFilename(revision uint64) string {
	return fmt.Sprintf("baseline-%d.x1sb", revision)
}
