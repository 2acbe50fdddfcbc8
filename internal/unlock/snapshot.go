package unlock

// Snapshot is a read-only view of every register the engine looks at. Taking
// one never writes to the hardware.
type Snapshot struct {
	HSFS           uint16   `json:"hsfs"`
	FDOOverridden  bool     `json:"fdo_overridden"`
	BIOSControl    uint8    `json:"bios_cntl"`
	WriteProtected bool     `json:"write_protected"`
	PMBase         uint16   `json:"pmbase"`
	SMIEnable      uint32   `json:"smi_en"`
	SMIEnabled     bool     `json:"smi_enabled"`
	ECIndexPort    uint16   `json:"ec_index_port"`
	ECDecoded      bool     `json:"ec_decoded"`
	DecodeRanges   []string `json:"decode_ranges"`
}

// Snapshot reads the current register state.
func (e *Engine) Snapshot() (Snapshot, error) {
	var s Snapshot
	var err error

	if s.HSFS, err = e.HSFS(); err != nil {
		return s, err
	}
	s.FDOOverridden = s.HSFS&hsfsFDOPSS == 0

	wp, err := e.wp.Status()
	if err != nil {
		return s, err
	}
	s.BIOSControl = uint8(wp)
	s.WriteProtected = wp.Locked()

	s.PMBase = e.ctx.PMBase
	if s.SMIEnable, err = e.smi.Raw(); err != nil {
		return s, err
	}
	s.SMIEnabled = s.SMIEnable&1 != 0

	s.ECIndexPort = e.ec.IndexPort()
	ranges, err := e.lpc.Ranges()
	if err != nil {
		return s, err
	}
	for _, r := range ranges {
		s.DecodeRanges = append(s.DecodeRanges, r.String())
		if r.Enabled && r.Covers(s.ECIndexPort) {
			s.ECDecoded = true
		}
	}
	return s, nil
}
