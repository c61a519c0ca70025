// Package noc decodes the National Operator Codes XML feed, which is
// published in ISO-8859-1 rather than UTF-8, into a generic record set.
// Unlike txcloader and the stop-point loaders, NOC carries no
// indirection or calendar structure worth modelling explicitly — every
// record is flattened as-is, mirroring how little the source reference
// implementation does with it beyond a straight JSON dump.
package noc

import (
	"github.com/clbanning/mxj/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/mxjutil"
)

// Operator is one National Operator Code record.
type Operator struct {
	NOCCode     string
	OperatorPublicName string
	VOSAPSVLicenseName string
	Mode        string
	TTRteEnq    string
}

// Transcode converts ISO-8859-1 encoded bytes (the NOC feed's native
// encoding) to UTF-8 so the decode step never sees an invalid rune.
func Transcode(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot transcode NOC XML from ISO-8859-1").WithCause(err)
	}
	return out, nil
}

// Parse decodes UTF-8 NOC XML (already transcoded via Transcode) into
// the flattened operator list.
func Parse(data []byte) ([]Operator, error) {
	root, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot decode NOC XML").WithCause(err)
	}

	nocData, ok := mxjutil.GetMap(map[string]interface{}(root), "NOC_DATA")
	if !ok {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "missing NOC_DATA root element")
	}

	table, ok := mxjutil.GetMap(nocData, "NOCTable")
	if !ok {
		return nil, nil
	}

	var operators []Operator
	for _, node := range mxjutil.AsList(table["NOCTABLEXCH"]) {
		rMap, ok := node.(map[string]interface{})
		if !ok {
			continue
		}
		operators = append(operators, Operator{
			NOCCode:            mxjutil.AsString(rMap["NOCCODE"]),
			OperatorPublicName: mxjutil.AsString(rMap["OperatorPublicName"]),
			VOSAPSVLicenseName: mxjutil.AsString(rMap["VOSA_PSVLicenseName"]),
			Mode:               mxjutil.AsString(rMap["Mode"]),
			TTRteEnq:           mxjutil.AsString(rMap["TTRteEnq"]),
		})
	}
	return operators, nil
}
