package ioentrez

import (
	"encoding/json"
	"strings"

	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/gnfmt"
)

// DocSummary links a sequence record to its taxon.
type DocSummary = climate.Link

// TaxonRecord is a taxon from the Entrez taxonomy database.
type TaxonRecord = climate.TaxonName

// ExtractDocSummary reads uid and taxid of a sequence summary.
func ExtractDocSummary(raw json.RawMessage) (DocSummary, bool) {
	var doc struct {
		UID   json.Number `json:"uid"`
		TaxID json.Number `json:"taxid"`
	}
	var res DocSummary
	enc := gnfmt.GNjson{}
	if err := enc.Decode(raw, &doc); err != nil {
		return res, false
	}
	res = DocSummary{UID: doc.UID.String(), TaxID: doc.TaxID.String()}
	if res.UID == "" || !validTaxID(res.TaxID) {
		return res, false
	}
	return res, true
}

// ExtractTaxon reads taxid and scientific name of a taxonomy summary.
func ExtractTaxon(raw json.RawMessage) (TaxonRecord, bool) {
	var doc struct {
		TaxID json.Number `json:"taxid"`
		Name  string      `json:"scientificname"`
	}
	var res TaxonRecord
	enc := gnfmt.GNjson{}
	if err := enc.Decode(raw, &doc); err != nil {
		return res, false
	}
	res = TaxonRecord{
		TaxID: doc.TaxID.String(),
		Name:  strings.TrimSpace(doc.Name),
	}
	if !validTaxID(res.TaxID) || res.Name == "" {
		return res, false
	}
	return res, true
}

func validTaxID(id string) bool {
	return id != "" && id != "0"
}
