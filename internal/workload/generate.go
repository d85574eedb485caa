package workload

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// DefaultDocumentSize matches the size of the documents the harness is tuned for.
const DefaultDocumentSize = 300 * 1024

type syntheticDocument struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Version     int             `json:"version"`
	Items       []syntheticItem `json:"items"`
}

type syntheticItem struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       float64           `json:"price"`
	Quantity    int               `json:"quantity"`
	Active      bool              `json:"active"`
	Tags        []string          `json:"tags"`
	Attributes  map[string]string `json:"attributes"`
}

var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
	"india", "juliet", "kilo", "lima", "mike", "november", "oscar", "papa",
}

// GenerateDocument writes a JSON document of roughly size bytes. The same
// seed always yields the same document.
func GenerateDocument(w io.Writer, size int, seed int64) error {
	if size <= 0 {
		size = DefaultDocumentSize
	}
	rnd := rand.New(rand.NewSource(seed))
	doc := syntheticDocument{
		ID:          fmt.Sprintf("doc-%d", seed),
		GeneratedAt: time.Unix(0, 0).UTC(),
		Version:     1,
	}

	// Item bytes alone reach size; the envelope only adds to it.
	estimate := 0
	for estimate < size {
		item := newSyntheticItem(rnd, len(doc.Items))
		encoded, err := json.Marshal(item)
		if err != nil {
			return err
		}
		estimate += len(encoded) + 1
		doc.Items = append(doc.Items, item)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

func newSyntheticItem(rnd *rand.Rand, id int) syntheticItem {
	item := syntheticItem{
		ID:         id,
		Name:       fmt.Sprintf("%s-%s-%d", pick(rnd), pick(rnd), id),
		Price:      float64(rnd.Intn(100000)) / 100,
		Quantity:   rnd.Intn(1000),
		Active:     rnd.Intn(2) == 0,
		Attributes: make(map[string]string, 4),
	}
	for i := 0; i < 12; i++ {
		item.Description += pick(rnd) + " "
	}
	for i := 0; i < 1+rnd.Intn(5); i++ {
		item.Tags = append(item.Tags, pick(rnd))
	}
	for i := 0; i < 4; i++ {
		item.Attributes[pick(rnd)] = pick(rnd)
	}
	return item
}

func pick(rnd *rand.Rand) string {
	return words[rnd.Intn(len(words))]
}
