package controls

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sample() []SecurityControl {
	return []SecurityControl{
		{ControlID: "AWS-S3-02", ControlName: "Default encryption", ControlDescription: "Enable SSE-KMS", Mapping: "CIS AWS v3.0 2.1.1; NIST Rev5 SC-28", Plane: DataPlane},
		{ControlID: "AWS-S3-01", ControlName: "Naming standards", ControlDescription: "Apply org naming", Mapping: "NIST Rev5 CM-8", Plane: ControlPlane},
	}
}

func TestParsePlane(t *testing.T) {
	cases := map[string]Plane{
		"Control Plane": ControlPlane,
		"data plane":    DataPlane,
		"DATA_PLANE":    DataPlane,
		"control-plane": ControlPlane,
	}
	for input, want := range cases {
		got, err := ParsePlane(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParsePlane("management")
	assert.Error(t, err)
}

func TestPlaneUnmarshalJSONAcceptsLabels(t *testing.T) {
	var c SecurityControl
	require.NoError(t, json.Unmarshal([]byte(`{"controlId":"X-1","controlName":"n","controlDescription":"d","mapping":"m","plane":"Control Plane"}`), &c))
	assert.Equal(t, ControlPlane, c.Plane)

	err := json.Unmarshal([]byte(`{"plane":"Storage Plane"}`), &c)
	assert.Error(t, err)
}

func TestSplitMapping(t *testing.T) {
	got := SplitMapping("CIS AWS v3.0 1.4; NIST Rev5 AC-2, ;ISO 27001 A.9")
	assert.Equal(t, []string{"CIS AWS v3.0 1.4", "NIST Rev5 AC-2", "ISO 27001 A.9"}, got)
	assert.Empty(t, SplitMapping(""))
}

func TestByPlanePreservesOrder(t *testing.T) {
	list := append(sample(), SecurityControl{ControlID: "AWS-S3-03", ControlName: "Tagging", Plane: ControlPlane})
	cp, dp := ByPlane(list)
	require.Len(t, cp, 2)
	require.Len(t, dp, 1)
	assert.Equal(t, "AWS-S3-01", cp[0].ControlID)
	assert.Equal(t, "AWS-S3-03", cp[1].ControlID)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sample()))
	assert.Error(t, Validate(nil))

	dup := sample()
	dup[1].ControlID = dup[0].ControlID
	err := Validate(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")

	missing := sample()
	missing[0].ControlID = " "
	assert.Error(t, Validate(missing))
}

func TestRenderYAMLRoundTrip(t *testing.T) {
	data, err := RenderYAML("AWS S3 Bucket", sample())
	require.NoError(t, err)
	assert.Contains(t, string(data), "service: AWS S3 Bucket")

	var doc Document
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "AWS S3 Bucket", doc.Service)
	assert.Equal(t, sample(), doc.Controls)
}

func TestRenderMarkdownGroupsByPlane(t *testing.T) {
	md := RenderMarkdown("AWS S3 Bucket", sample())
	cpIdx := strings.Index(md, "### Control Plane (1)")
	dpIdx := strings.Index(md, "### Data Plane (1)")
	require.NotEqual(t, -1, cpIdx)
	require.NotEqual(t, -1, dpIdx)
	assert.Less(t, cpIdx, dpIdx)
	assert.Contains(t, md, "CIS AWS v3.0 2.1.1<br>NIST Rev5 SC-28")
}

func TestWriteCSVControlPlaneFirst(t *testing.T) {
	var buf bytes.Buffer
	list := sample()
	list[0].ControlDescription = `Enable "SSE-KMS", rotate keys`
	require.NoError(t, WriteCSV(&buf, list))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "AWS-S3-01", records[1][0])
	assert.Equal(t, "Control Plane", records[1][3])
	assert.Equal(t, `Enable "SSE-KMS", rotate keys`, records[2][2])
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "AWS_S3_Bucket_Security_Controls.csv", ExportFileName(" AWS S3  Bucket "))
	assert.Equal(t, "aws_s3_bucket.tf", TerraformFileName("AWS S3 Bucket"))
	assert.Equal(t, "azure-key-vault", Slug("Azure Key Vault!"))
	assert.Equal(t, "service", Slug("***"))
}
