// Package bid defines the core types shared across the watcher subsystems.
package bid

import (
	"errors"
	"fmt"
)

// ErrCaptchaUnsolvable is returned when the captcha could not be answered
// within the configured number of attempts.
var ErrCaptchaUnsolvable = errors.New("captcha unsolvable")

// ErrNoBrowser indicates no browser collaborator was configured.
var ErrNoBrowser = errors.New("browser not configured")

// Record is one contract announcement extracted from the results list.
// It is comparable so it can be used directly as a set member.
type Record struct {
	Name         string `json:"name"`
	Photo        string `json:"photo"`
	Timestamp    string `json:"timestamp"`
	Nickname     string `json:"nickname"`
	ContractType string `json:"contract_type"`
}

// Caption renders the status text published for the record.
func (r Record) Caption() string {
	return fmt.Sprintf("%s publicado no BID em %s - tipo de contrato: %s", r.Nickname, r.Timestamp, r.ContractType)
}

// Field identifies one sub-field of a result row.
type Field int

// Row fields in the order the extractor reads them.
const (
	FieldName Field = iota
	FieldPhoto
	FieldTimestamp
	FieldNickname
	FieldContractType
)

// Fields lists every row field.
var Fields = []Field{FieldName, FieldPhoto, FieldTimestamp, FieldNickname, FieldContractType}

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldPhoto:
		return "photo"
	case FieldTimestamp:
		return "timestamp"
	case FieldNickname:
		return "nickname"
	case FieldContractType:
		return "contract_type"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// SearchForm carries the values typed into the registry search form.
type SearchForm struct {
	Date      string
	State     string
	ClubID    string
	ClubLabel string
}
