package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrNoMatchingKey is returned when a response file has no key file
	// whose name starts with the response file's stem.
	ErrNoMatchingKey = errors.New("batch: no matching key file")

	// ErrAlreadyRunning is returned when a scan is requested while one is
	// in progress.
	ErrAlreadyRunning = errors.New("batch: scan already in progress")
)

// Pair is one response file and the key file it is scored against.
type Pair struct {
	Name         string `json:"name"`
	KeyPath      string `json:"keyPath"`
	ResponsePath string `json:"responsePath"`
}

// PairFiles matches every regular file of responseDir with the first key file
// (in name order) whose name starts with the response file's stem, i.e. its
// name without the last extension. Pairs are returned in response name order.
func PairFiles(keyDir, responseDir string) ([]Pair, error) {
	keyNames, err := fileNames(keyDir)
	if err != nil {
		return nil, err
	}
	responseNames, err := fileNames(responseDir)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(responseNames))
	for _, name := range responseNames {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		i := slices.IndexFunc(keyNames, func(k string) bool { return strings.HasPrefix(k, stem) })
		if i < 0 {
			return nil, fmt.Errorf("%w for %s", ErrNoMatchingKey, filepath.Join(responseDir, name))
		}
		pairs = append(pairs, Pair{
			Name:         stem,
			KeyPath:      filepath.Join(keyDir, keyNames[i]),
			ResponsePath: filepath.Join(responseDir, name),
		})
	}
	return pairs, nil
}

// fileNames lists the regular files of dir, sorted.
func fileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
