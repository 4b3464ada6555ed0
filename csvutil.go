package main

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var csvDelimiters = []rune{',', ';', '\t', '|'}

// detectDelimiter picks the first known delimiter present in the sample,
// defaulting to comma.
func detectDelimiter(sample string) rune {
	for _, d := range csvDelimiters {
		if strings.ContainsRune(sample, d) {
			return d
		}
	}
	return ','
}

// NormalizeCSV turns an arbitrary uploaded table into an ordered candidate
// list: delimiter auto-detected, username/message columns found by header
// name, malformed and empty rows discarded.
func NormalizeCSV(r io.Reader) ([]Candidate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	content := strings.TrimPrefix(string(data), "\uFEFF")
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("empty csv file")
	}

	sample := content
	if len(sample) > 1024 {
		sample = sample[:1024]
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(sample)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	usernameCol, messageCol := 0, 1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if strings.Contains(name, "user") {
			usernameCol = i
		}
		if strings.Contains(name, "message") || strings.Contains(name, "text") {
			messageCol = i
		}
	}

	var candidates []Candidate
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row, drop it and keep going.
			continue
		}
		if len(row) <= usernameCol || len(row) <= messageCol {
			continue
		}

		username := strings.TrimSpace(row[usernameCol])
		message := strings.TrimSpace(row[messageCol])
		if username == "" || message == "" {
			continue
		}

		candidates = append(candidates, Candidate{
			Username: username,
			Message:  message,
		})
	}

	return candidates, nil
}

// WriteCandidatesCSV emits the canonical two-column form used by the
// remaining-messages export.
func WriteCandidatesCSV(w io.Writer, candidates []Candidate) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"username", "message"}); err != nil {
		return err
	}
	for _, c := range candidates {
		if c.Username == "" || c.Message == "" {
			continue
		}
		if err := writer.Write([]string{c.Username, c.Message}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
