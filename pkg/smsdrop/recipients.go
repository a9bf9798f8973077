package smsdrop

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// phoneHeaders are the CSV column names recognized as holding phone numbers.
var phoneHeaders = map[string]bool{
	"phone":         true,
	"phones":        true,
	"phone_number":  true,
	"phone_numbers": true,
	"tel":           true,
}

const lineDelimiters = ",;|\t"

// ParsePhones reads phone numbers for a RecipientList.
//
// With csvHeader the input is CSV and numbers are taken from the first column
// named phone, phones, phone_number, phone_numbers or tel. Otherwise each line
// holds one or more numbers separated by the first comma, semicolon, pipe or
// tab found on it, or by spaces when there is none. Blank entries are skipped.
func ParsePhones(r io.Reader, csvHeader bool) ([]string, error) {
	if csvHeader {
		return parseCSVPhones(r)
	}

	var phones []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, field := range splitLine(line) {
			if phone := strings.TrimSpace(field); phone != "" {
				phones = append(phones, phone)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("smsdrop: reading phones: %w", err)
	}
	return phones, nil
}

// splitLine splits line on the first delimiter it contains.
func splitLine(line string) []string {
	if i := strings.IndexAny(line, lineDelimiters); i >= 0 {
		return strings.Split(line, line[i:i+1])
	}
	return strings.Fields(line)
}

func parseCSVPhones(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("smsdrop: reading csv header: %w", err)
	}

	col := -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if phoneHeaders[name] {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, invalid("recipient_list", "csv has no phone column")
	}

	var phones []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("smsdrop: reading csv: %w", err)
		}
		if col >= len(record) {
			continue
		}
		if phone := strings.TrimSpace(record[col]); phone != "" {
			phones = append(phones, phone)
		}
	}
	return phones, nil
}

// ParsePhonesFile opens path and parses it with ParsePhones. Files with a
// .csv extension are read as CSV with a header row.
func ParsePhonesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("smsdrop: opening %s: %w", path, err)
	}
	defer f.Close()

	isCSV := strings.EqualFold(filepath.Ext(path), ".csv")
	return ParsePhones(f, isCSV)
}
