package timeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
		ok   bool
	}{
		{"plain", "100,200,matmul", Record{"matmul", 100, 200}, true},
		{"name with commas", "1,2,mul_mat,q4_0,f32", Record{"mul_mat,q4_0,f32", 1, 2}, true},
		{"crlf", "1,2,add\r", Record{"add", 1, 2}, true},
		{"empty name", "1,2,", Record{"", 1, 2}, true},
		{"padded numbers", " 5 , 9 ,x", Record{"x", 5, 9}, true},
		{"one comma", "100,200", Record{}, false},
		{"no comma", "garbage", Record{}, false},
		{"bad start", "a,2,x", Record{}, false},
		{"bad end", "1,b,x", Record{}, false},
		{"negative", "-1,2,x", Record{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRecord(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordValid(t *testing.T) {
	assert.True(t, Record{Start: 1, End: 2}.Valid())
	assert.False(t, Record{Start: 0, End: 2}.Valid(), "zero start marks an unused slot")
	assert.False(t, Record{Start: 5, End: 5}.Valid())
	assert.False(t, Record{Start: 6, End: 5}.Valid())
}

func TestParseRecordsSkipsMalformed(t *testing.T) {
	recs, skipped, err := ParseRecords(strings.NewReader("10,20,ok\n10,20\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{{"ok", 10, 20}}, recs)
	assert.Equal(t, 1, skipped)
}

func TestParseRecordsDropsInvalid(t *testing.T) {
	in := strings.Join([]string{
		"0,10,unused-slot",
		"30,30,empty",
		"40,35,backwards",
		"",
		"5,6,kept",
	}, "\n")
	recs, skipped, err := ParseRecords(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Record{{"kept", 5, 6}}, recs)
	assert.Equal(t, 3, skipped)
}

func TestParseRecordsLongLine(t *testing.T) {
	long := strings.Repeat("x", 2<<20)
	in := "1000,2000,ok\n5,6," + long + "\n3000,4000,ok2"

	recs, skipped, err := ParseRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Zero(t, skipped)
	assert.Equal(t, "ok", recs[0].Name)
	assert.Len(t, recs[1].Name, len(long))
	assert.Equal(t, Record{"ok2", 3000, 4000}, recs[2], "last line without newline")
}
