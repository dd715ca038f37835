package mbus

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/meter"
	"github.com/jonaz/gombus"
)

// ModelGaroGNM3D is the default meter model.
const ModelGaroGNM3D = "garo-GNM3D-MBUS"

// Mbus reads the energy meter in front of the immersion heater over a serial M-Bus master.
type Mbus struct {
	device string
	conn   gombus.Conn
	mutex  *sync.Mutex
}

func New(device string) *Mbus {
	return &Mbus{
		device: device,
		mutex:  &sync.Mutex{},
	}
}

func (m *Mbus) init() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		return nil
	}
	c, err := gombus.DialSerial(m.device)
	if err != nil {
		return fmt.Errorf("error opening mbus device %s: %w", m.device, err)
	}
	m.conn = c
	return nil
}

func (m *Mbus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

func (m *Mbus) ReadValues(model string, primaryAddr int) (*meter.Data, error) {
	err := m.init()
	if err != nil {
		return nil, err
	}

	frame, err := m.read(primaryAddr)
	if err != nil {
		// reopen the port on next read
		m.Close()
		return nil, err
	}

	return decode(model, primaryAddr, frame)
}

func decode(model string, primaryAddr int, frame *gombus.DecodedFrame) (*meter.Data, error) {
	records := frame.DataRecords
	data := &meter.Data{
		Id:    strconv.Itoa(primaryAddr),
		Model: model,
		Time:  time.Now(),
	}
	switch model {
	case ModelGaroGNM3D, "":
		if len(records) < 11 {
			return nil, fmt.Errorf("mbus: expected 11 data records from address %d got %d", primaryAddr, len(records))
		}
		data.Model = ModelGaroGNM3D
		data.Total_WH = records[0].Value
		data.Current_W = records[2].Value
		data.Current_VLL = records[6].Value
		data.Current_VLN = records[7].Value
		data.L1_A = records[8].Value
		data.L2_A = records[9].Value
		data.L3_A = records[10].Value
	default:
		return nil, fmt.Errorf("mbus: unsupported meter model %s", model)
	}
	return data, nil
}

func (m *Mbus) read(primaryAddr int) (*gombus.DecodedFrame, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, err := m.conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, primaryAddr)
}
