package snapshot

import (
	"bytes"
	"strings"
	"testing"
)

func FuzzDecodeRemote(f *testing.F) {
	f.Add("sku,price,flag\nA,10.00,1\nB,,0\n")
	f.Add("\ufeffprice,sku\n5,A\n")
	f.Add("sku,price,flag\nA,1,2\n")
	f.Add("sku\nA\n")

	f.Fuzz(func(t *testing.T, input string) {
		records, err := DecodeRemote(strings.NewReader(input))
		if err != nil {
			return
		}

		var buf bytes.Buffer
		err = EncodeRemote(&buf, records)
		if err != nil {
			t.Fatal(err)
		}
		decoded, err := DecodeRemote(&buf)
		if err != nil {
			t.Fatalf("re-decoding encoded records: %v", err)
		}
		if len(decoded) != len(records) {
			t.Fatalf("got %d records back, expected %d", len(decoded), len(records))
		}
		for i := range records {
			if decoded[i].SKU != records[i].SKU ||
				decoded[i].Matched != records[i].Matched ||
				!decoded[i].Price.Equal(records[i].Price) {
				t.Fatalf("record %d changed: %+v != %+v", i, decoded[i], records[i])
			}
		}
	})
}
