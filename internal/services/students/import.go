package students

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/services/auth"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var requiredColumns = []string{"rollNumber", "name", "category", "academicYear", "branch", "totalAmount"}

type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Rows     int        `json:"rows"`
	Inserted int64      `json:"inserted"`
	Existing int64      `json:"existing"`
	Skipped  []RowError `json:"skipped"`
}

// Import reads a roster CSV and inserts every valid row. Columns are found
// by header name; rows that fail validation are reported and skipped, and
// roll numbers already on file are left untouched.
func (s *Service) Import(ctx context.Context, caller auth.Identity, filename string, r io.Reader) (*ImportResult, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can import students")
	}

	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if sample, _ := br.Peek(1024); !strings.Contains(string(sample), ",") && strings.Contains(string(sample), "\t") {
		reader.Comma = '\t'
	}

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.Validation("cannot read CSV header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[strings.ToLower(c)]; !ok {
			return nil, apperr.Validation("missing column %s", c)
		}
	}

	result := &ImportResult{Skipped: []RowError{}}
	var batch []*models.Student
	seen := make(map[string]int)

	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: "malformed row"})
			continue
		}
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}
		result.Rows++

		req, err := parseRow(record, cols)
		if err == nil {
			var student *models.Student
			student, err = newStudent(req)
			if err == nil {
				if first, dup := seen[student.RollNumber]; dup {
					err = fmt.Errorf("duplicate of row %d", first)
				} else {
					seen[student.RollNumber] = rowNum
					batch = append(batch, student)
				}
			}
		}
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: err.Error()})
		}
	}

	inserted, err := s.students.CreateMany(ctx, batch)
	if err != nil {
		s.log.Error("student import failed", zap.String("file", filename), zap.Error(err))
		return nil, apperr.Server(err)
	}
	result.Inserted = inserted
	result.Existing = int64(len(batch)) - inserted

	s.log.Info("student import finished",
		zap.String("file", filename),
		zap.Int("rows", result.Rows),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("existing", result.Existing),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func parseRow(record []string, cols map[string]int) (RegisterRequest, error) {
	field := func(name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	total, err := parseAmount(field("totalAmount"))
	if err != nil {
		return RegisterRequest{}, apperr.Validation("invalid totalAmount")
	}
	paid, err := parseAmount(field("paidAmount"))
	if err != nil {
		return RegisterRequest{}, apperr.Validation("invalid paidAmount")
	}

	return RegisterRequest{
		Name:         field("name"),
		RollNumber:   field("rollNumber"),
		Gender:       field("gender"),
		Category:     field("category"),
		AcademicYear: field("academicYear"),
		Branch:       field("branch"),
		FeeType:      field("feeType"),
		BillNumber:   field("billNumber"),
		TotalAmount:  total,
		PaidAmount:   paid,
		Password:     field("password"),
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}
