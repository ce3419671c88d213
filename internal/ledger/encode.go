package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// EncodeJSONL writes one transaction per line.
func EncodeJSONL(w io.Writer, l *Ledger) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, t := range l.txs {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to encode transaction %d: %w", i+1, err)
		}
	}
	return nil
}

// DecodeJSONL reads a ledger written by EncodeJSONL. Blank lines are
// ignored. meta supplies the fields that are not stored per line.
func DecodeJSONL(r io.Reader, meta Metadata) (*Ledger, error) {
	var txs []Transaction
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var t Transaction
		if err := json.Unmarshal([]byte(text), &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if meta.Bank == "" && len(txs) > 0 {
		meta.Bank = txs[0].Bank()
	}
	return New(txs, meta)
}

type document struct {
	Metadata     Metadata      `json:"metadata"`
	Transactions []Transaction `json:"transactions"`
}

// EncodeJSON writes the ledger as a single indented document holding the
// metadata and the transactions.
func EncodeJSON(w io.Writer, l *Ledger) error {
	doc := document{Metadata: l.meta, Transactions: l.txs}
	if doc.Transactions == nil {
		doc.Transactions = []Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DecodeJSON reads a document written by EncodeJSON.
func DecodeJSON(r io.Reader) (*Ledger, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return New(doc.Transactions, doc.Metadata)
}
