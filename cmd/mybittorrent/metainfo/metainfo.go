package metainfo

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/bencode"
)

// Torrent is the decoded descriptor of a single-file torrent. It is read-only once loaded.
type Torrent struct {
	Announce string `bencode:"announce"`
	Info     Info   `bencode:"info"`
}

// Info is the info dictionary. Its fields are exactly the ones hashed into the
// fingerprint, so nothing else may be added here.
type Info struct {
	Length      uint64 `bencode:"length"`
	Name        string `bencode:"name"`
	PieceLength uint64 `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces"`
}

// SchemaError names the first required field that is missing or has the wrong shape.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("metainfo: field %q: %s", e.Field, e.Reason)
}

type field struct {
	key  string
	kind bencode.Kind
	text bool
	// check validates the value once its kind is known.
	check func(bencode.Value) string
}

var torrentFields = []field{
	{key: "announce", kind: bencode.KindString, text: true},
	{key: "info", kind: bencode.KindDict},
}

var infoFields = []field{
	{key: "name", kind: bencode.KindString, text: true},
	{key: "piece length", kind: bencode.KindInteger, check: positive},
	{key: "pieces", kind: bencode.KindString, check: multipleOfHashSize},
	{key: "length", kind: bencode.KindInteger, check: nonNegative},
}

func positive(v bencode.Value) string {
	if v.(bencode.Integer) <= 0 {
		return "must be greater than zero"
	}
	return ""
}

func nonNegative(v bencode.Value) string {
	if v.(bencode.Integer) < 0 {
		return "must not be negative"
	}
	return ""
}

func multipleOfHashSize(v bencode.Value) string {
	if n := len(v.(bencode.String)); n%HashSize != 0 {
		return fmt.Sprintf("length %d is not a multiple of %d", n, HashSize)
	}
	return ""
}

// Load decodes a metainfo file and validates the fields a single-file torrent needs.
func Load(data []byte) (*Torrent, error) {
	decoded, err := bencode.Decode(data)
	if err != nil {
		return nil, err
	}

	root, ok := decoded.(bencode.Dict)
	if !ok {
		return nil, &SchemaError{Field: "", Reason: fmt.Sprintf("expected dictionary, got %s", decoded.Kind())}
	}
	if err := validate(root, "", torrentFields); err != nil {
		return nil, err
	}
	if err := validate(root["info"].(bencode.Dict), "info.", infoFields); err != nil {
		return nil, err
	}

	var torrent Torrent
	if err := bencode.Unmarshal(root, &torrent); err != nil {
		return nil, fmt.Errorf("metainfo: failed to project torrent: %w", err)
	}
	return &torrent, nil
}

func validate(d bencode.Dict, prefix string, fields []field) error {
	for _, f := range fields {
		v, err := d.Require(f.key, f.kind)
		if err != nil {
			var fieldErr *bencode.FieldError
			if errors.As(err, &fieldErr) && fieldErr.Missing {
				return &SchemaError{Field: prefix + f.key, Reason: "missing"}
			}
			return &SchemaError{Field: prefix + f.key, Reason: fmt.Sprintf("expected %s, got %s", f.kind, d[f.key].Kind())}
		}
		if f.text && !utf8.Valid(v.(bencode.String)) {
			return &SchemaError{Field: prefix + f.key, Reason: "not valid UTF-8 text"}
		}
		if f.check != nil {
			if reason := f.check(v); reason != "" {
				return &SchemaError{Field: prefix + f.key, Reason: reason}
			}
		}
	}
	return nil
}

// PieceCount is the number of piece hashes carried in Pieces.
func (i *Info) PieceCount() int {
	return len(i.Pieces) / HashSize
}

// PieceHashes splits Pieces into its 20-byte digests.
func (i *Info) PieceHashes() []Hash {
	hashes := make([]Hash, i.PieceCount())
	for n := range hashes {
		copy(hashes[n][:], i.Pieces[n*HashSize:(n+1)*HashSize])
	}
	return hashes
}

// CheckPieceCount reports whether the number of piece hashes matches
// ceil(Length / PieceLength).
func (i *Info) CheckPieceCount() error {
	if i.PieceLength == 0 {
		return fmt.Errorf("piece length is zero")
	}
	want := (i.Length + i.PieceLength - 1) / i.PieceLength
	if got := uint64(i.PieceCount()); got != want {
		return fmt.Errorf("%d piece hashes for length %d and piece length %d, expected %d",
			got, i.Length, i.PieceLength, want)
	}
	return nil
}
