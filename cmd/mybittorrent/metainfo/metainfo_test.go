package metainfo_test

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"strconv"
	"testing"

	jackpal "github.com/jackpal/bencode-go"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/bencode"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
)

var samplePieces = bytes.Join([][]byte{
	bytes.Repeat([]byte{0xe8}, 20),
	bytes.Repeat([]byte{0x6e}, 20),
	bytes.Repeat([]byte{0x00}, 20),
}, nil)

func str(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

// sampleTorrent lays out the info dictionary in a non-canonical key order, as some
// producers do.
func sampleTorrent() []byte {
	var b bytes.Buffer
	b.WriteString("d8:announce" + str("http://tracker.example/announce"))
	b.WriteString("10:created by" + str("mktorrent 1.1"))
	b.WriteString("4:infod")
	b.WriteString("4:name" + str("sample.txt"))
	b.WriteString("6:pieces" + str(string(samplePieces)))
	b.WriteString("12:piece lengthi32768e")
	b.WriteString("6:lengthi92063e")
	b.WriteString("ee")
	return b.Bytes()
}

func canonicalSampleInfo() []byte {
	return []byte("d6:lengthi92063e" + "4:name" + str("sample.txt") +
		"12:piece lengthi32768e" + "6:pieces" + str(string(samplePieces)) + "e")
}

func TestLoad(t *testing.T) {
	torrent, err := metainfo.Load(sampleTorrent())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if torrent.Announce != "http://tracker.example/announce" {
		t.Errorf("Announce = %q", torrent.Announce)
	}
	if torrent.Info.Name != "sample.txt" {
		t.Errorf("Name = %q, want sample.txt", torrent.Info.Name)
	}
	if torrent.Info.Length != 92063 {
		t.Errorf("Length = %d, want 92063", torrent.Info.Length)
	}
	if torrent.Info.PieceLength != 32768 {
		t.Errorf("PieceLength = %d, want 32768", torrent.Info.PieceLength)
	}
	if !bytes.Equal(torrent.Info.Pieces, samplePieces) {
		t.Errorf("Pieces = %x", torrent.Info.Pieces)
	}
	if got := torrent.Info.PieceCount(); got != 3 {
		t.Errorf("PieceCount = %d, want 3", got)
	}
	if err := torrent.Info.CheckPieceCount(); err != nil {
		t.Errorf("CheckPieceCount: %v", err)
	}
}

func TestHashInfoMatchesCanonicalEncoding(t *testing.T) {
	torrent, err := metainfo.Load(sampleTorrent())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	hash, err := metainfo.HashInfo(&torrent.Info)
	if err != nil {
		t.Fatalf("HashInfo: %v", err)
	}

	want := sha1.Sum(canonicalSampleInfo())
	if hash != metainfo.Hash(want) {
		t.Errorf("HashInfo = %s, want %x", hash, want)
	}
}

func TestHashInfoMatchesJackpal(t *testing.T) {
	info := metainfo.Info{Name: "sample.txt", PieceLength: 32768, Pieces: samplePieces, Length: 92063}
	hash, err := metainfo.HashInfo(&info)
	if err != nil {
		t.Fatalf("HashInfo: %v", err)
	}

	var buf bytes.Buffer
	err = jackpal.Marshal(&buf, struct {
		Length      int64  `bencode:"length"`
		Name        string `bencode:"name"`
		PieceLength int64  `bencode:"piece length"`
		Pieces      string `bencode:"pieces"`
	}{92063, "sample.txt", 32768, string(samplePieces)})
	if err != nil {
		t.Fatalf("jackpal.Marshal: %v", err)
	}

	if want := metainfo.Hash(sha1.Sum(buf.Bytes())); hash != want {
		t.Errorf("HashInfo = %s, jackpal digest %s", hash, want)
	}
}

func TestHashInfoDeterministic(t *testing.T) {
	first, err := metainfo.Load(sampleTorrent())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := metainfo.Load(sampleTorrent())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h1, err := metainfo.HashInfo(&first.Info)
	if err != nil {
		t.Fatalf("HashInfo: %v", err)
	}
	h2, err := metainfo.HashInfo(&second.Info)
	if err != nil {
		t.Fatalf("HashInfo: %v", err)
	}
	if h1 != h2 {
		t.Errorf("info hash differs: %s vs %s", h1, h2)
	}
}

func TestHashInfoChangesWithAnyField(t *testing.T) {
	base := metainfo.Info{Name: "sample.txt", PieceLength: 32768, Pieces: bytes.Clone(samplePieces), Length: 92063}
	baseHash, err := metainfo.HashInfo(&base)
	if err != nil {
		t.Fatalf("HashInfo: %v", err)
	}

	flipped := bytes.Clone(samplePieces)
	flipped[len(flipped)-1] ^= 0x01

	variants := map[string]metainfo.Info{
		"name":         {Name: "sample.txu", PieceLength: 32768, Pieces: samplePieces, Length: 92063},
		"piece length": {Name: "sample.txt", PieceLength: 16384, Pieces: samplePieces, Length: 92063},
		"pieces":       {Name: "sample.txt", PieceLength: 32768, Pieces: flipped, Length: 92063},
		"length":       {Name: "sample.txt", PieceLength: 32768, Pieces: samplePieces, Length: 92064},
	}

	for field, info := range variants {
		hash, err := metainfo.HashInfo(&info)
		if err != nil {
			t.Fatalf("HashInfo: %v", err)
		}
		if hash == baseHash {
			t.Errorf("changing %s did not change the info hash", field)
		}
	}
}

func TestLoadSchemaErrors(t *testing.T) {
	info := func(fields string) string { return "4:infod" + fields + "e" }
	validInfo := "6:lengthi10e" + "4:name1:a" + "12:piece lengthi16e" + "6:pieces20:" + string(bytes.Repeat([]byte{1}, 20))
	announce := "8:announce" + str("http://t/a")

	tests := []struct {
		name  string
		input string
		field string
	}{
		{"root not a dictionary", "li1ee", ""},
		{"missing announce", "d" + info(validInfo) + "e", "announce"},
		{"announce not a string", "d8:announcei1e" + info(validInfo) + "e", "announce"},
		{"announce not text", "d8:announce2:\xff\xfe" + info(validInfo) + "e", "announce"},
		{"missing info", "d" + announce + "e", "info"},
		{"info not a dictionary", "d" + announce + "4:infoi1ee", "info"},
		{"missing name", "d" + announce + info("6:lengthi10e12:piece lengthi16e6:pieces0:") + "e", "info.name"},
		{"zero piece length", "d" + announce + info("6:lengthi10e4:name1:a12:piece lengthi0e6:pieces0:") + "e", "info.piece length"},
		{"pieces not a multiple of 20", "d" + announce + info("6:lengthi10e4:name1:a12:piece lengthi16e6:pieces3:abc") + "e", "info.pieces"},
		{"missing length", "d" + announce + info("4:name1:a12:piece lengthi16e6:pieces0:") + "e", "info.length"},
		{"negative length", "d" + announce + info("6:lengthi-1e4:name1:a12:piece lengthi16e6:pieces0:") + "e", "info.length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metainfo.Load([]byte(tt.input))
			var schemaErr *metainfo.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %v", err)
			}
			if schemaErr.Field != tt.field {
				t.Errorf("Field = %q, want %q (%v)", schemaErr.Field, tt.field, err)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := metainfo.Load([]byte("d8:announce"))
	var parseErr *bencode.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *bencode.ParseError, got %v", err)
	}
}

func TestPieceCountMismatchIsNotFatal(t *testing.T) {
	input := "d8:announce" + str("http://t/a") +
		"4:infod6:lengthi100e4:name1:a12:piece lengthi10e6:pieces20:" + string(bytes.Repeat([]byte{7}, 20)) + "ee"

	torrent, err := metainfo.Load([]byte(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := torrent.Info.CheckPieceCount(); err == nil {
		t.Error("expected CheckPieceCount to report 1 hash for 10 pieces")
	}
}

func TestPieceHashes(t *testing.T) {
	info := metainfo.Info{Pieces: samplePieces}
	hashes := info.PieceHashes()
	if len(hashes) != 3 {
		t.Fatalf("got %d piece hashes, want 3", len(hashes))
	}
	if hashes[1].String() != "6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e6e" {
		t.Errorf("hashes[1] = %s", hashes[1])
	}
}

func TestParseHash(t *testing.T) {
	h, err := metainfo.ParseHash("d69f91e6b2ae4c542468d1073a71d4ea13879a7f")
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if h.String() != "d69f91e6b2ae4c542468d1073a71d4ea13879a7f" {
		t.Errorf("String = %s", h)
	}

	for _, bad := range []string{"", "d69f", "zz9f91e6b2ae4c542468d1073a71d4ea13879a7f"} {
		if _, err := metainfo.ParseHash(bad); err == nil {
			t.Errorf("ParseHash(%q) expected error", bad)
		}
	}
}
