package wfst

import (
	"bytes"
	"encoding/gob"
)

// SymbolTable is the mapping between symbol strings and Labels, used for
// both character vocabularies (one UTF-8 codepoint per symbol) and word
// vocabularies. It generalizes kho-fslm's vocab.go Vocab from a
// fixed <unk>/<s>/</s> triple to a single reserved epsilon symbol at
// index 0, matching spec.md §6 ("a symbol table attached to the FST...
// <epsilon> at index 0").
type SymbolTable struct {
	epsilon string
	id2str  []string
	str2id  map[string]Label
}

// NewSymbolTable creates a table with epsilon (conventionally "" or
// "<eps>") pre-populated at label 0.
func NewSymbolTable(epsilon string) *SymbolTable {
	return &SymbolTable{
		epsilon: epsilon,
		id2str:  []string{epsilon},
		str2id:  map[string]Label{epsilon: Epsilon},
	}
}

// Copy returns an independent copy of t.
func (t *SymbolTable) Copy() *SymbolTable {
	c := &SymbolTable{epsilon: t.epsilon}
	c.id2str = append([]string(nil), t.id2str...)
	c.str2id = make(map[string]Label, len(t.str2id))
	for k, v := range t.str2id {
		c.str2id[k] = v
	}
	return c
}

// NumSymbols returns the number of distinct symbols, including epsilon.
func (t *SymbolTable) NumSymbols() int { return len(t.id2str) }

// Find looks up the Label for sym, returning NoLabel if absent.
func (t *SymbolTable) Find(sym string) Label {
	if l, ok := t.str2id[sym]; ok {
		return l
	}
	return NoLabel
}

// FindSymbol looks up the string for a Label. Only safe for labels
// returned by Find, Add, or iteration up to NumSymbols.
func (t *SymbolTable) FindSymbol(l Label) string {
	return t.id2str[l]
}

// Add inserts sym if absent and returns its Label either way. Not
// thread-safe: callers performing concurrent updates must serialize
// through their own lock (see PPM/simple-bigram models).
func (t *SymbolTable) Add(sym string) Label {
	if l, ok := t.str2id[sym]; ok {
		return l
	}
	l := Label(len(t.id2str))
	t.id2str = append(t.id2str, sym)
	t.str2id[sym] = l
	return l
}

// Symbols returns all symbols in label order, including epsilon at 0.
func (t *SymbolTable) Symbols() []string {
	return t.id2str
}

func (t *SymbolTable) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(t.epsilon); err != nil {
		return nil, err
	}
	if err := enc.Encode(t.id2str); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *SymbolTable) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&t.epsilon); err != nil {
		return err
	}
	if err := dec.Decode(&t.id2str); err != nil {
		return err
	}
	t.str2id = make(map[string]Label, len(t.id2str))
	for i, s := range t.id2str {
		t.str2id[s] = Label(i)
	}
	return nil
}
