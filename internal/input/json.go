// Package input decodes key and response files into clusterings and encodes
// reports. It sits outside the scoring core: the metrics never see a file.
package input

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/rawblock/coref-scorer/internal/clustering"
	"github.com/rawblock/coref-scorer/pkg/models"
)

var (
	// ErrUnsupportedType is returned for a document whose type is neither
	// "graph" nor "clusters".
	ErrUnsupportedType = errors.New("input: unsupported document type")

	// ErrInvalidDocument is returned for a document that fails validation.
	ErrInvalidDocument = errors.New("input: invalid document")

	// ErrOverlap is returned when a clusters document lists a mention in
	// more than one cluster.
	ErrOverlap = errors.New("input: mention in several clusters")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeDocument reads and validates one JSON document.
func DecodeDocument(r io.Reader) (models.Document, error) {
	var doc models.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

// ValidateDocument checks the document's shape.
func ValidateDocument(doc models.Document) error {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Type" && fe.Tag() == "oneof" {
				return fmt.Errorf("%w: %q", ErrUnsupportedType, doc.Type)
			}
		}
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrInvalidDocument, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
}

// ToClustering converts a document to a clustering. Graph documents go
// through the clustering builder; clusters documents keep their clusters in
// cluster id order, dropping empty ones.
func ToClustering(doc models.Document) (models.Clustering, error) {
	switch doc.Type {
	case models.DocumentTypeGraph:
		return clustering.BuildClusters(doc.Mentions, doc.Links), nil

	case models.DocumentTypeClusters:
		ids := make([]string, 0, len(doc.Clusters))
		for id := range doc.Clusters {
			ids = append(ids, id)
		}
		slices.SortFunc(ids, compareIDs)

		owner := make(map[models.Mention]string)
		out := make(models.Clustering, 0, len(ids))
		for _, id := range ids {
			var cluster models.Cluster
			for _, m := range doc.Clusters[id] {
				if prev, seen := owner[m]; seen {
					if prev == id {
						continue // repeated inside its own cluster
					}
					return nil, fmt.Errorf("%w: %q in clusters %q and %q", ErrOverlap, m, prev, id)
				}
				owner[m] = id
				cluster = append(cluster, m)
			}
			if len(cluster) > 0 {
				out = append(out, cluster)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, doc.Type)
}

// compareIDs orders numeric ids numerically and everything else lexically,
// numbers first.
func compareIDs(a, b string) int {
	x, errX := strconv.Atoi(a)
	y, errY := strconv.Atoi(b)
	switch {
	case errX == nil && errY == nil && x != y:
		return cmp.Compare(x, y)
	case errX == nil && errY == nil:
		return cmp.Compare(a, b)
	case errX == nil:
		return -1
	case errY == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// ReadClustering decodes a document from r and converts it.
func ReadClustering(r io.Reader) (models.Clustering, error) {
	doc, err := DecodeDocument(r)
	if err != nil {
		return nil, err
	}
	return ToClustering(doc)
}

// LoadFile reads a clustering from a JSON file.
func LoadFile(path string) (models.Clustering, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := ReadClustering(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// EncodeReport writes report as indented JSON.
func EncodeReport(w io.Writer, report any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// EncodeDocument writes doc as compact JSON.
func EncodeDocument(w io.Writer, doc models.Document) error {
	return json.NewEncoder(w).Encode(doc)
}
