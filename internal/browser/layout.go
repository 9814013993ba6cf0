package browser

import (
	"fmt"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// Layout holds the XPath expressions used to address the registry page.
// Row expressions take the 1-based row index as their only verb.
type Layout struct {
	DateInput     string
	StateSelect   string
	ClubSelect    string
	SearchButton  string
	CaptchaImage  string
	CaptchaInput  string
	CaptchaReload string
	CaptchaSubmit string
	ResultCount   string
	RowName       string
	RowPhoto      string
	RowTimestamp  string
	RowNickname   string
	RowContract   string
}

// DefaultLayout matches the current bid.cbf.com.br markup.
func DefaultLayout() Layout {
	return Layout{
		DateInput:     `//*[@id="form-busca-bid"]/div[1]/div[1]/input`,
		StateSelect:   `//*[@id="form-busca-bid"]/div[1]/div[2]/select`,
		ClubSelect:    `//*[@id="form-busca-bid"]/div[1]/div[3]/select`,
		SearchButton:  `//*[@id="btn-filtro"]/i`,
		CaptchaImage:  `//*[@id="modal-captcha"]/div/div/div/div[1]/div[1]/img`,
		CaptchaInput:  `//*[@id="modal-captcha"]/div/div/div/div[1]/div[2]/input`,
		CaptchaReload: `//*[@id="modal-captcha"]/div/div/div/div[1]/div[1]/label/button`,
		CaptchaSubmit: `//*[@id="btn-confirma-captcha"]`,
		ResultCount:   `//*[@id="display-registros"]`,
		RowName:       `//*[@id="lista"]/div[%d]/div/div/div[1]`,
		RowPhoto:      `//*[@id="lista"]/div[%d]/div/div/div[2]/img`,
		RowTimestamp:  `//*[@id="lista"]/div[%d]/div/div/div[3]/p[3]/strong`,
		RowNickname:   `//*[@id="lista"]/div[%d]/div/div/div[3]/p[6]/strong`,
		RowContract:   `//*[@id="lista"]/div[%d]/div/div/div[3]/p[2]/strong`,
	}
}

// RowXPath resolves the XPath of one field in the 1-based result row.
func (l Layout) RowXPath(index int, field bid.Field) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("row index must be >= 1, got %d", index)
	}
	var pattern string
	switch field {
	case bid.FieldName:
		pattern = l.RowName
	case bid.FieldPhoto:
		pattern = l.RowPhoto
	case bid.FieldTimestamp:
		pattern = l.RowTimestamp
	case bid.FieldNickname:
		pattern = l.RowNickname
	case bid.FieldContractType:
		pattern = l.RowContract
	default:
		return "", fmt.Errorf("unknown row field %s", field)
	}
	return fmt.Sprintf(pattern, index), nil
}
