package input

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// CoNLL-2012 reader
//
// A file holds documents delimited by "#begin document (name); [part N]" and
// "#end document". Inside a document, blank lines separate blocks (sentences)
// and each token line carries its coreference annotation in one column:
// "(3" opens a mention of entity 3, "3)" closes it, "(3)" is a one-token
// mention and "-" means nothing.

var (
	// ErrBadLine is returned for a line without the coreference column, or
	// for a document structure error.
	ErrBadLine = errors.New("conll: badly formatted line")

	// ErrUnbalanced is returned when a mention is closed without being opened.
	ErrUnbalanced = errors.New("conll: unbalanced parentheses")

	// ErrDangling is returned when a block ends with mentions still open.
	ErrDangling = errors.New("conll: dangling mentions")
)

var (
	openRe  = regexp.MustCompile(`\((\d+)`)
	closeRe = regexp.MustCompile(`(\d+)\)`)
	beginRe = regexp.MustCompile(`^#\s*begin document \((.*?)\);(\s*part (.*))?`)
	endRe   = regexp.MustCompile(`^#\s*end document`)
)

// LastColumn selects the last field of each line as the coreference column.
const LastColumn = -1

// Span is one mention: the block it sits in and its first and last token.
type Span struct {
	Block int
	Start string
	End   string
}

// ID renders the span as a mention identifier, "block.start-end".
func (s Span) ID() models.Mention {
	return models.Mention(fmt.Sprintf("%d.%s-%s", s.Block, s.Start, s.End))
}

// Entity is one annotated entity and its mentions.
type Entity struct {
	ID       string
	Mentions []Span
}

// ConllDocument is one parsed document.
type ConllDocument struct {
	Name     string
	Entities []Entity
}

// ParseBlock parses one block. Entities are returned in order of their first
// opening; all spans have Block 0.
func ParseBlock(lines []string, column int) ([]Entity, error) {
	var entities []Entity
	index := map[string]int{}
	open := map[string][]string{}

	for i, line := range lines {
		row := strings.Fields(line)

		// Token number, guessed from the line position for short rows
		rowN := strconv.Itoa(i)
		if len(row) > 2 {
			rowN = row[2]
		}

		col := column
		if col < 0 {
			col += len(row)
		}
		if col < 0 || col >= len(row) {
			return nil, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		coref := row[col]
		if coref == "-" {
			continue
		}

		for _, m := range openRe.FindAllStringSubmatch(coref, -1) {
			e := m[1]
			if _, ok := index[e]; !ok {
				index[e] = len(entities)
				entities = append(entities, Entity{ID: e})
			}
			open[e] = append(open[e], rowN)
		}

		for _, m := range closeRe.FindAllStringSubmatch(coref, -1) {
			e := m[1]
			stack := open[e]
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w at line %d: %q", ErrUnbalanced, i, line)
			}
			start := stack[len(stack)-1]
			open[e] = stack[:len(stack)-1]
			entities[index[e]].Mentions = append(entities[index[e]].Mentions, Span{Start: start, End: rowN})
		}
	}

	var dangling []string
	for e, stack := range open {
		if len(stack) > 0 {
			dangling = append(dangling, e)
		}
	}
	if len(dangling) > 0 {
		slices.Sort(dangling)
		return nil, fmt.Errorf("%w: entities %v", ErrDangling, dangling)
	}
	return entities, nil
}

// splitBlocks cuts lines at blank lines. Every blank line closes a block, so
// consecutive blank lines produce empty blocks and shift the numbering.
func splitBlocks(lines []string) [][]string {
	var blocks [][]string
	var buffer []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blocks = append(blocks, buffer)
			buffer = nil
			continue
		}
		buffer = append(buffer, l)
	}
	if len(buffer) > 0 {
		blocks = append(blocks, buffer)
	}
	return blocks
}

// ParseDocument parses the lines of one document.
//
// A mention claimed by several entities stays with the entity that appeared
// first; repeats within an entity are dropped. Entities left without mentions
// are removed. Each entity's spans are sorted by block, then start, then end.
func ParseDocument(lines []string, column int) ([]Entity, error) {
	var entities []Entity
	index := map[string]int{}

	for b, block := range splitBlocks(lines) {
		blockEntities, err := ParseBlock(block, column)
		if err != nil {
			return nil, fmt.Errorf("parse error in block %d: %w", b, err)
		}
		for _, be := range blockEntities {
			i, ok := index[be.ID]
			if !ok {
				i = len(entities)
				index[be.ID] = i
				entities = append(entities, Entity{ID: be.ID})
			}
			for _, s := range be.Mentions {
				s.Block = b
				entities[i].Mentions = append(entities[i].Mentions, s)
			}
		}
	}

	seen := map[Span]struct{}{}
	out := entities[:0]
	for _, e := range entities {
		var kept []Span
		for _, s := range e.Mentions {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			continue
		}
		slices.SortFunc(kept, compareSpans)
		e.Mentions = kept
		out = append(out, e)
	}
	return out, nil
}

func compareSpans(a, b Span) int {
	if c := cmp.Compare(a.Block, b.Block); c != 0 {
		return c
	}
	if c := compareIDs(a.Start, b.Start); c != 0 {
		return c
	}
	return compareIDs(a.End, b.End)
}

// ParseFile reads every document of a CoNLL-2012 file. Lines are trimmed.
func ParseFile(r io.Reader, column int) ([]ConllDocument, error) {
	var docs []ConllDocument
	var buffer []string
	name, inDocument := "", false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(line, "#") {
			buffer = append(buffer, line)
			continue
		}
		if m := beginRe.FindStringSubmatch(line); m != nil {
			name = m[1]
			if m[2] != "" {
				name = m[1] + "-" + m[3]
			}
			buffer, inDocument = nil, true
			continue
		}
		if endRe.MatchString(line) {
			if !inDocument {
				return nil, fmt.Errorf("%w: line %d: end of document without a beginning", ErrBadLine, lineNo)
			}
			entities, err := ParseDocument(buffer, column)
			if err != nil {
				return nil, fmt.Errorf("document %q: %w", name, err)
			}
			docs = append(docs, ConllDocument{Name: name, Entities: entities})
			buffer, inDocument = nil, false
		}
		// Other comment lines are ignored
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inDocument {
		return nil, fmt.Errorf("%w: document %q is not terminated", ErrBadLine, name)
	}
	return docs, nil
}

// ToClustersDocument converts a parsed document to the clusters JSON shape.
func (d ConllDocument) ToClustersDocument() models.Document {
	clusters := make(map[string][]models.Mention, len(d.Entities))
	for _, e := range d.Entities {
		ms := make([]models.Mention, len(e.Mentions))
		for i, s := range e.Mentions {
			ms[i] = s.ID()
		}
		clusters[e.ID] = ms
	}
	return models.Document{
		Name:     d.Name,
		Type:     models.DocumentTypeClusters,
		Clusters: clusters,
	}
}

// OutputName is the file name a converted document is written to:
// "<input file>.<document name>.json" with slashes in the name replaced.
func OutputName(inputFile string, d ConllDocument) string {
	return fmt.Sprintf("%s.%s.json", filepath.Base(inputFile), strings.ReplaceAll(d.Name, "/", "-"))
}
