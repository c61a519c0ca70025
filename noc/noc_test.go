package noc

import (
	"bytes"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func encodeLatin1(t *testing.T, s string) []byte {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("failed to encode fixture as ISO-8859-1: %v", err)
	}
	return encoded
}

func TestTranscodeConvertsIso88591ToUtf8(t *testing.T) {
	original := "<Name>Café Shuttle</Name>"
	latin1 := encodeLatin1(t, original)

	got, err := Transcode(latin1)
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if !bytes.Contains(got, []byte("Café Shuttle")) {
		t.Errorf("expected transcoded bytes to contain UTF-8 Café, got %q", got)
	}
}

func TestParseFlattensNocTableRecords(t *testing.T) {
	fragment := `<?xml version="1.0"?>
<NOC_DATA>
	<NOCTable>
		<NOCTABLEXCH>
			<NOCCODE>ANWE</NOCCODE>
			<OperatorPublicName>Arriva North West</OperatorPublicName>
			<Mode>Bus</Mode>
		</NOCTABLEXCH>
		<NOCTABLEXCH>
			<NOCCODE>SCCM</NOCCODE>
			<OperatorPublicName>Stagecoach</OperatorPublicName>
			<Mode>Bus</Mode>
		</NOCTABLEXCH>
	</NOCTable>
</NOC_DATA>`

	operators, err := Parse([]byte(fragment))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(operators) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(operators))
	}
	if operators[0].NOCCode != "ANWE" || operators[0].OperatorPublicName != "Arriva North West" {
		t.Errorf("unexpected operator: %+v", operators[0])
	}
}

func TestParseRejectsMissingRoot(t *testing.T) {
	_, err := Parse([]byte(`<NotNocData></NotNocData>`))
	if err == nil {
		t.Fatal("expected error for missing NOC_DATA root")
	}
}
