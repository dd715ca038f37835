package mbus

import (
	"testing"

	"github.com/jonaz/gombus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []gombus.DecodedDataRecord {
	r := make([]gombus.DecodedDataRecord, n)
	for i := range r {
		r[i] = gombus.DecodedDataRecord{Value: float64(i * 10)}
	}
	return r
}

func TestDecode(t *testing.T) {
	var tests = []struct {
		name    string
		model   string
		records []gombus.DecodedDataRecord
		wantErr string
	}{
		{name: "garo", model: ModelGaroGNM3D, records: records(11)},
		{name: "default model", model: "", records: records(12)},
		{name: "too few records", model: ModelGaroGNM3D, records: records(10), wantErr: "expected 11 data records from address 3 got 10"},
		{name: "unsupported", model: "abb-b23", records: records(11), wantErr: "unsupported meter model abb-b23"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			data, err := decode(tt.model, 3, &gombus.DecodedFrame{DataRecords: tt.records})
			if tt.wantErr != "" {
				assert.EqualError(t, err, "mbus: "+tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "3", data.Id)
			assert.Equal(t, ModelGaroGNM3D, data.Model)
			assert.Equal(t, 0.0, data.Total_WH)
			assert.Equal(t, 20.0, data.Current_W)
			assert.Equal(t, 60.0, data.Current_VLL)
			assert.Equal(t, 70.0, data.Current_VLN)
			assert.Equal(t, 80.0, data.L1_A)
			assert.Equal(t, 90.0, data.L2_A)
			assert.Equal(t, 100.0, data.L3_A)
		})
	}
}
