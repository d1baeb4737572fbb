package dw1000

// DW1000 register file IDs (user manual chapter 7).
const (
	regDevID     = 0x00
	regEUI       = 0x01
	regPANADR    = 0x03
	regSysCfg    = 0x04
	regSysTime   = 0x06
	regTxFCtrl   = 0x08
	regTxBuffer  = 0x09
	regDXTime    = 0x0A
	regSysCtrl   = 0x0D
	regSysMask   = 0x0E
	regSysStatus = 0x0F
	regRxFInfo   = 0x10
	regRxBuffer  = 0x11
	regRxFQual   = 0x12
	regRxTime    = 0x15
	regTxTime    = 0x17
	regTxAntD    = 0x18
	regChanCtrl  = 0x1F
	regAgcTune   = 0x23
	regDrxTune   = 0x27
	regLdeIf     = 0x2E
	regTxPower   = 0x1E
	regRfConf    = 0x28
	regOTPIf     = 0x2D
	regPMSCCtrl  = 0x36
)

// Expected DEV_ID value.
const devIDExpected = 0xDECA0130

// SYS_CTRL bits.
const (
	sysCtrlTXStart = 1 << 1
	sysCtrlTXDelay = 1 << 2
	sysCtrlTRXOff  = 1 << 6
	sysCtrlRXEnab  = 1 << 8
)

// SYS_CFG bits.
const (
	sysCfgFFEnable   = 1 << 0  // frame filtering on
	sysCfgFFAllowData = 1 << 3 // accept data frames
	sysCfgFFAllowRsvd = 1 << 7 // accept reserved frame types (blink)
	sysCfgRxAutoRE   = 1 << 29 // re-enable receiver after errors
)

// SYS_STATUS bits.
const (
	sysStatusTXFRS   = 1 << 7  // transmit frame sent
	sysStatusLDEDone = 1 << 10 // leading edge detection complete
	sysStatusRXDFR   = 1 << 13 // receiver data frame ready
	sysStatusRXFCG   = 1 << 14 // receiver FCS good
	sysStatusRXFCE   = 1 << 15 // receiver FCS error
	sysStatusRXRFSL  = 1 << 16 // Reed-Solomon frame sync loss
	sysStatusRXRFTO  = 1 << 17 // receive frame wait timeout
	sysStatusRXPTO   = 1 << 21 // preamble detection timeout
	sysStatusRXSFDTO = 1 << 26 // SFD timeout

	sysStatusAllRXErr = sysStatusRXFCE | sysStatusRXRFSL | sysStatusRXRFTO |
		sysStatusRXPTO | sysStatusRXSFDTO
)

// SYS_MASK bits enabling the interrupts the driver consumes.
const (
	sysMaskMTXFRS = 1 << 7
	sysMaskMRXFCG = 1 << 14
)

// RX_FINFO fields.
const (
	rxFInfoFrameLenMask = 0x0000007F
	rxFInfoRXPACCShift  = 20
	rxFInfoRXPACCMask   = 0xFFF
)

// Constants for the received-power estimate (user manual 4.7). The
// correction term depends on the pulse repetition frequency.
const (
	powerCorr16MHz = 113.77
	powerCorr64MHz = 121.74
)
