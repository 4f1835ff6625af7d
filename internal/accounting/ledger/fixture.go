package ledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
)

//go:embed fixtures/demo.json
var demoFixture []byte

type fixture struct {
	Classes []struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		CType int    `json:"ctype"`
	} `json:"classes"`
	Types []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		ClassID  int64  `json:"classId"`
		ParentID *int64 `json:"parentId"`
	} `json:"types"`
	Accounts []struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		TypeID int64  `json:"typeId"`
	} `json:"accounts"`
	Entries []struct {
		Counter    int64           `json:"counter"`
		Type       int             `json:"type"`
		SequenceNo int64           `json:"sequenceNo"`
		Date       string          `json:"date"`
		Account    string          `json:"account"`
		Amount     decimal.Decimal `json:"amount"`
		Memo       string          `json:"memo"`
		Dimension1 int64           `json:"dimension1"`
		Dimension2 int64           `json:"dimension2"`
	} `json:"entries"`
	Budget []struct {
		Date       string          `json:"date"`
		Account    string          `json:"account"`
		Amount     decimal.Decimal `json:"amount"`
		Dimension1 int64           `json:"dimension1"`
		Dimension2 int64           `json:"dimension2"`
	} `json:"budget"`
}

// LoadBook decodes a JSON fixture into a Book.
func LoadBook(r io.Reader) (*Book, error) {
	var f fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("ledger: decode fixture: %w", err)
	}

	book := NewBook()
	for _, c := range f.Classes {
		kind, err := accounting.ClassKindFromCode(c.CType)
		if err != nil {
			return nil, fmt.Errorf("ledger: class %d: %w", c.ID, err)
		}
		book.AddClass(accounting.AccountClass{ID: c.ID, Name: c.Name, Kind: kind})
	}
	for _, t := range f.Types {
		book.AddType(accounting.AccountType{ID: t.ID, Name: t.Name, ClassID: t.ClassID, ParentID: t.ParentID})
	}
	for _, a := range f.Accounts {
		book.AddAccount(accounting.Account{Code: a.Code, Name: a.Name, TypeID: a.TypeID})
	}
	for i, e := range f.Entries {
		date, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			return nil, fmt.Errorf("ledger: entry %d: %w", i, err)
		}
		book.Post(accounting.LedgerRow{
			Counter:     e.Counter,
			Type:        e.Type,
			SequenceNo:  e.SequenceNo,
			Date:        date,
			AccountCode: e.Account,
			Amount:      e.Amount,
			Memo:        e.Memo,
			Dimension1:  e.Dimension1,
			Dimension2:  e.Dimension2,
		})
	}
	for i, e := range f.Budget {
		date, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			return nil, fmt.Errorf("ledger: budget %d: %w", i, err)
		}
		book.Plan(BudgetEntry{Date: date, AccountCode: e.Account, Amount: e.Amount, Dimension1: e.Dimension1, Dimension2: e.Dimension2})
	}
	return book, nil
}

// Demo returns a small sample company covering 2023 and 2024.
func Demo() *Book {
	book, err := LoadBook(bytes.NewReader(demoFixture))
	if err != nil {
		panic(err)
	}
	return book
}
