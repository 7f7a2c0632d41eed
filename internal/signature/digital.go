// Package signature merges a digital-signature form-field check with a
// per-page visual signature classification into one status.
package signature

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/batflow/batverify/internal/models"
)

// DetectDigital scans the document's AcroForm for signature-type fields
// (FT == Sig). Only top-level fields are inspected; signed BATs carry the
// signature widget at the top level. A structural parse failure fails
// closed: found=false with a diagnostic detail, never an error, so the
// rest of the comparison proceeds.
func DetectDigital(docBytes []byte) models.DigitalSignatureResult {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(docBytes), conf)
	if err != nil {
		return models.DigitalSignatureResult{
			Found:   false,
			Details: []string{fmt.Sprintf("document structure unreadable: %v", err)},
		}
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return models.DigitalSignatureResult{
			Found:   false,
			Details: []string{fmt.Sprintf("document catalog unreadable: %v", err)},
		}
	}

	acroObj, ok := rootDict.Find("AcroForm")
	if !ok {
		return models.DigitalSignatureResult{Found: false, Details: []string{"no form detected"}}
	}
	formDict, err := ctx.DereferenceDict(acroObj)
	if err != nil || formDict == nil {
		return models.DigitalSignatureResult{Found: false, Details: []string{"no form detected"}}
	}

	fieldsObj, ok := formDict.Find("Fields")
	if !ok {
		return models.DigitalSignatureResult{Found: false, Details: []string{"form has no fields"}}
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return models.DigitalSignatureResult{Found: false, Details: []string{"form fields unreadable"}}
	}

	var details []string
	for i, fieldObj := range fields {
		fieldDict, err := ctx.DereferenceDict(fieldObj)
		if err != nil || fieldDict == nil {
			continue
		}
		if !isSignatureField(ctx, fieldDict) {
			continue
		}
		details = append(details, fmt.Sprintf("signature field: %q", fieldName(ctx, fieldDict, i)))
	}

	if len(details) == 0 {
		return models.DigitalSignatureResult{Found: false, Details: []string{}}
	}
	return models.DigitalSignatureResult{Found: true, Count: len(details), Details: details}
}

func isSignatureField(ctx *model.Context, fieldDict types.Dict) bool {
	ftObj, ok := fieldDict.Find("FT")
	if !ok {
		return false
	}
	ft, err := ctx.Dereference(ftObj)
	if err != nil {
		return false
	}
	name, ok := ft.(types.Name)
	return ok && name.Value() == "Sig"
}

func fieldName(ctx *model.Context, fieldDict types.Dict, index int) string {
	tObj, ok := fieldDict.Find("T")
	if ok {
		t, err := ctx.Dereference(tObj)
		if err == nil {
			switch s := t.(type) {
			case types.StringLiteral:
				return s.Value()
			case types.HexLiteral:
				return s.Value()
			}
		}
	}
	return fmt.Sprintf("field %d", index+1)
}
