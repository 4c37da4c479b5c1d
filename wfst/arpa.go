package wfst

// ARPA n-gram text format parsing, reimplemented over bufio.Scanner in
// place of kho-fslm's stream.Iteratee/github.com/kho/stream pipeline
// (unfetchable outside the teacher's own module; see DESIGN.md). The
// low-level lexer (isSpace/lineSplit/tokenSplit) is kept close to
// verbatim, since lineSplit's signature already matches
// bufio.SplitFunc exactly.

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadARPA parses an ARPA-format n-gram model from in, adding every
// entry to a fresh Builder over symbols (epsilon reserved at label 0;
// the ARPA file's own <s>/</s> boundary symbols become ordinary
// labels in the table). Returns the built, linked Fst.
func ReadARPA(in io.Reader, symbols *SymbolTable) (*Fst, error) {
	b := NewBuilder(symbols)
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	s.Split(lineSplit)

	if !s.Scan() {
		return nil, fmt.Errorf("wfst: empty ARPA input")
	}
	if line := strings.TrimSpace(s.Text()); line != `\data\` {
		return nil, fmt.Errorf(`wfst: expected \data\, got %q`, line)
	}
	// Skip the n-gram-count section (ngram N=count lines) up to the
	// first \N-grams: header.
	var header string
	for s.Scan() {
		line := s.Text()
		if len(line) > 0 && line[0] == '\\' {
			header = line
			break
		}
	}
	hiOrder := 0
	for header != "" && header != `\end\` {
		n, err := parseNgramHeader(header)
		if err != nil {
			return nil, err
		}
		if n > hiOrder {
			hiOrder = n
		}
		header = ""
		for s.Scan() {
			line := s.Bytes()
			if len(line) > 0 && line[0] == '\\' {
				header = string(line)
				break
			}
			if err := addArpaLine(b, symbols, n, line); err != nil {
				return nil, err
			}
		}
	}
	if header != `\end\` {
		return nil, fmt.Errorf(`wfst: missing \end\ marker`)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	b.Link()
	b.fst.SetHiOrder(hiOrder)
	return b.fst, nil
}

func parseNgramHeader(line string) (int, error) {
	if len(line) == 0 || line[0] != '\\' || !strings.HasSuffix(line, "-grams:") {
		return 0, fmt.Errorf(`wfst: expected section header "\N-grams:", got %q`, line)
	}
	n, err := strconv.Atoi(line[1 : len(line)-len("-grams:")])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf(`wfst: expected positive integer in section header, got %q`, line)
	}
	return n, nil
}

func addArpaLine(b *Builder, symbols *SymbolTable, n int, line []byte) error {
	x, rest := tokenSplit(line)
	if x == "" {
		return fmt.Errorf("wfst: expected log-probability")
	}
	logp, err := strconv.ParseFloat(x, 64)
	if err != nil {
		return err
	}
	context := make([]Label, n-1)
	for i := 1; i < n; i++ {
		x, rest = tokenSplit(rest)
		if x == "" {
			return fmt.Errorf("wfst: expected %d context word(s)", n-1)
		}
		context[i-1] = symbols.Add(x)
	}
	x, rest = tokenSplit(rest)
	if x == "" {
		return fmt.Errorf("wfst: expected word")
	}
	word := symbols.Add(x)
	var bow Weight
	x, rest = tokenSplit(rest)
	if x != "" {
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return err
		}
		bow = Weight(f * -ln10)
	}
	if len(rest) != 0 {
		return fmt.Errorf("wfst: unexpected trailing data on n-gram line")
	}
	// ARPA stores log10 probabilities; Weight is -ln(x).
	b.AddNgram(context, word, Weight(-logp*ln10), bow)
	return nil
}

const ln10 = 2.302585092994046

func isSpace(b byte) bool {
	switch b {
	case '\t', '\v', '\f', '\r', ' ':
		return true
	default:
		return false
	}
}

// lineSplit is a bufio.SplitFunc that returns one trimmed, non-blank
// line at a time, skipping blank lines entirely.
func lineSplit(data []byte, atEOF bool) (int, []byte, error) {
	l, r, n := -1, -1, 0
	for i, b := range data {
		if !isSpace(b) && b != '\n' {
			l = i
			break
		}
	}
	if l < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	for i, b := range data[l+1:] {
		if b == '\n' {
			r, n = l+i, l+i+2
			break
		}
	}
	if r < 0 {
		if !atEOF {
			return 0, nil, nil
		}
		r, n = len(data)-1, len(data)
	}
	for r > l && isSpace(data[r]) {
		r--
	}
	return n, data[l : r+1], nil
}

// tokenSplit splits the first whitespace-delimited token off line,
// which must have no leading space, returning the token and the
// remainder with its own leading space trimmed.
func tokenSplit(line []byte) (string, []byte) {
	r := -1
	for i, b := range line {
		if isSpace(b) {
			r = i
			break
		}
	}
	if r < 0 {
		r = len(line)
	}
	token := string(line[:r])
	for i, b := range line[r:] {
		if !isSpace(b) {
			return token, line[r+i:]
		}
	}
	return token, nil
}
