package segment

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

// SnapshotMagic identifies a binary index snapshot.
const (
	SnapshotMagic   = "BKIX"
	SnapshotVersion = 1
)

type snapshotFile struct {
	Magic    string `cbor:"1,keyasint"`
	Version  uint32 `cbor:"2,keyasint"`
	Checksum []byte `cbor:"3,keyasint"`
	Payload  []byte `cbor:"4,keyasint"`
}

type snapshotPayload struct {
	DocURLs        []string           `cbor:"u"`
	Ref            string             `cbor:"r"`
	Lang           string             `cbor:"g"`
	Version        string             `cbor:"v"`
	Fields         []string           `cbor:"f"`
	Pipeline       []string           `cbor:"p"`
	Store          docstore.Snapshot  `cbor:"s"`
	Terms          []index.FieldTerms `cbor:"t"`
	ResultsOptions ResultsOptions     `cbor:"ro"`
	SearchOptions  SearchOptions      `cbor:"so"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeSnapshot writes si as a checksummed CBOR snapshot. The tries are
// flattened into sorted term entries.
func EncodeSnapshot(si *SearchIndex) ([]byte, error) {
	if si.Index.DocumentStore == nil {
		return nil, fmt.Errorf("search index has no document store")
	}
	payload, err := encMode.Marshal(snapshotPayload{
		DocURLs:        si.DocURLs,
		Ref:            si.Index.Ref,
		Lang:           si.Index.Lang,
		Version:        si.Index.Version,
		Fields:         si.Index.Fields,
		Pipeline:       si.Index.Pipeline,
		Store:          si.Index.DocumentStore.Snapshot(),
		Terms:          si.FieldTerms(),
		ResultsOptions: si.ResultsOptions,
		SearchOptions:  si.SearchOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}
	sum := blake3.Sum256(payload)
	data, err := encMode.Marshal(snapshotFile{
		Magic:    SnapshotMagic,
		Version:  SnapshotVersion,
		Checksum: sum[:],
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot. A wrong magic,
// unsupported version or checksum mismatch fails with ErrInvalidIndex.
func DecodeSnapshot(data []byte) (*SearchIndex, error) {
	var file snapshotFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %v", apperrors.ErrInvalidIndex, err)
	}
	if file.Magic != SnapshotMagic {
		return nil, fmt.Errorf("%w: bad snapshot magic %q", apperrors.ErrInvalidIndex, file.Magic)
	}
	if file.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", apperrors.ErrInvalidIndex, file.Version)
	}
	sum := blake3.Sum256(file.Payload)
	if !bytes.Equal(sum[:], file.Checksum) {
		return nil, fmt.Errorf("%w: snapshot checksum mismatch", apperrors.ErrInvalidIndex)
	}
	var p snapshotPayload
	if err := cbor.Unmarshal(file.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot payload: %v", apperrors.ErrInvalidIndex, err)
	}
	tries := make(map[string]*index.InvertedIndex, len(p.Fields))
	for _, f := range p.Fields {
		tries[f] = index.NewInvertedIndex()
	}
	for _, ft := range p.Terms {
		inv, err := index.Restore(ft.Entries)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", apperrors.ErrInvalidIndex, ft.Field, err)
		}
		tries[ft.Field] = inv
	}
	return &SearchIndex{
		DocURLs: p.DocURLs,
		Index: IndexPayload{
			DocumentStore: docstore.FromSnapshot(p.Store),
			Fields:        p.Fields,
			Index:         tries,
			Lang:          p.Lang,
			Pipeline:      p.Pipeline,
			Ref:           p.Ref,
			Version:       p.Version,
		},
		ResultsOptions: p.ResultsOptions,
		SearchOptions:  p.SearchOptions,
	}, nil
}
