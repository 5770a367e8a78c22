package hc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	doc := NewDocument(33, FormatV3)
	root := &Node{Name: "N"}
	root.Attributes = append(root.Attributes, &Attribute{
		ID:    "X",
		Value: Value{Type: TypeLSString, Str: "hello"},
	})
	doc.AddRegion("R", root)
	return doc
}

func TestSerializeParseBinaryRoundTripV3(t *testing.T) {
	doc := sampleDoc()
	data, err := SerializeBinary(doc, FormatV3)
	require.NoError(t, err)

	got, err := ParseBinary(data)
	require.NoError(t, err)
	assert.True(t, doc.Equal(got), "expected round-tripped document to be semantically equal")
}

func TestSerializeParseBinaryRoundTripV2(t *testing.T) {
	doc := sampleDoc()
	data, err := SerializeBinary(doc, FormatV2)
	require.NoError(t, err)

	got, err := ParseBinary(data)
	require.NoError(t, err)
	assert.True(t, doc.Equal(got))
}

// TestXMLParseSerializeRoundTrip parses a single-attribute, single-node
// XML document, re-serializes it, and checks the result round-trips.
func TestXMLParseSerializeRoundTrip(t *testing.T) {
	input := []byte(`<save><header version="33"/><region id="R">
  <node id="N"><attribute id="X" type="LSString" value="hello"/></node>
</region></save>`)

	doc, err := ParseXML(input)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 1)
	assert.Equal(t, "R", doc.Regions[0].Name)

	root := doc.Regions[0].Root
	assert.Equal(t, "N", root.Name)
	require.Len(t, root.Attributes, 1)
	assert.Equal(t, "X", root.Attributes[0].ID)
	assert.Equal(t, "hello", root.Attributes[0].Value.Str)
	assert.Empty(t, root.Children)

	xmlOut, err := SerializeXML(doc)
	require.NoError(t, err)

	doc2, err := ParseXML(xmlOut)
	require.NoError(t, err)
	assert.True(t, doc.Equal(doc2))
}

func TestCrossEncodingRoundTrip(t *testing.T) {
	doc := sampleDoc()
	bin, err := SerializeBinary(doc, FormatV2)
	require.NoError(t, err)
	parsed, err := ParseBinary(bin)
	require.NoError(t, err)

	xmlOut, err := SerializeXML(parsed)
	require.NoError(t, err)
	reParsed, err := ParseXML(xmlOut)
	require.NoError(t, err)

	assert.True(t, doc.Equal(reParsed))
}

func TestJSONRoundTrip(t *testing.T) {
	doc := sampleDoc()
	out, err := SerializeJSON(doc)
	require.NoError(t, err)

	got, err := ParseJSON(out)
	require.NoError(t, err)
	assert.True(t, doc.Equal(got))
}

func TestV3ToV2RefusesKeyLoss(t *testing.T) {
	doc := NewDocument(1, FormatV3)
	root := &Node{Name: "N", Key: "k1", HasKey: true}
	doc.AddRegion("R", root)

	_, _, err := ToV2(doc, ConvertOptions{})
	assert.ErrorIs(t, err, ErrLossyV3ToV2)

	_, warnings, err := ToV2(doc, ConvertOptions{AllowKeyLoss: true})
	assert.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestEmptyDocumentRoundTrip(t *testing.T) {
	doc := NewDocument(1, FormatV3)
	data, err := SerializeBinary(doc, FormatV3)
	require.NoError(t, err)

	got, err := ParseBinary(data)
	require.NoError(t, err)
	assert.Empty(t, got.Regions)
}

func TestLslibMetaRoundTripsThroughXMLAndJSON(t *testing.T) {
	doc := sampleDoc()
	root := doc.Regions[0].Root
	doc.Meta[root] = "v1,bswap_guids"

	xmlData, err := SerializeXML(doc)
	require.NoError(t, err)
	fromXML, err := ParseXML(xmlData)
	require.NoError(t, err)
	require.True(t, doc.Equal(fromXML))
	assert.Equal(t, "v1,bswap_guids", fromXML.Meta[fromXML.Regions[0].Root])

	jsonData, err := SerializeJSON(doc)
	require.NoError(t, err)
	fromJSON, err := ParseJSON(jsonData)
	require.NoError(t, err)
	require.True(t, doc.Equal(fromJSON))
	assert.Equal(t, "v1,bswap_guids", fromJSON.Meta[fromJSON.Regions[0].Root])
}

func TestConversionRekeysMetaOntoClonedNodes(t *testing.T) {
	doc := sampleDoc()
	child := &Node{Name: "C"}
	doc.Regions[0].Root.AddChild(child)
	doc.Meta[child] = "v1"

	v3 := ToV3(doc)
	cloned := v3.Regions[0].Root.Children[0]
	assert.Equal(t, "v1", v3.Meta[cloned])

	v2, warnings, err := ToV2(doc, ConvertOptions{})
	require.NoError(t, err)
	assert.Empty(t, v2.Meta)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "lslib_meta")
}
