package uds

// Service identifiers
const (
	ShowStoredDiagnosticTroubleCodes byte = 0x03
	RequestVehicleInformation        byte = 0x09
	DiagnosticSessionControl         byte = 0x10
	ReadDataByIdentifierSID          byte = 0x22
	ReadMemoryByAddress              byte = 0x23
	SecurityAccess                   byte = 0x27
	RequestDownload                  byte = 0x34
	RequestUpload                    byte = 0x35
	TransferData                     byte = 0x36
	TesterPresentSID                 byte = 0x3E
)

const (
	// PositiveResponseOffset is added to the request SID in a positive response.
	PositiveResponseOffset byte = 0x40
	NegativeResponse       byte = 0x7F
)

const (
	PIDVehicleIdentification byte = 0x02

	SecurityAccessRequestSeed byte = 0x01
	SecurityAccessSendKey     byte = 0x02

	TesterPresentRequired byte = 0x00
)

// Diagnostic sessions
const (
	DefaultSession     byte = 0x01
	ProgrammingSession byte = 0x02
	ExtendedSession    byte = 0x03
)

// Negative response codes
const (
	NRCGeneralReject                           byte = 0x10
	NRCServiceNotSupported                     byte = 0x11
	NRCSubFunctionNotSupported                 byte = 0x12
	NRCIncorrectMessageLength                  byte = 0x13
	NRCResponseTooLong                         byte = 0x14
	NRCBusyRepeatRequest                       byte = 0x21
	NRCConditionsNotCorrect                    byte = 0x22
	NRCRequestSequenceError                    byte = 0x24
	NRCNoResponseFromSubnet                    byte = 0x25
	NRCFailurePreventsExecution                byte = 0x26
	NRCRequestOutOfRange                       byte = 0x31
	NRCSecurityAccessDenied                    byte = 0x33
	NRCInvalidKey                              byte = 0x35
	NRCExceededNumberOfAttempts                byte = 0x36
	NRCRequiredTimeDelayNotExpired             byte = 0x37
	NRCUploadDownloadNotAccepted               byte = 0x70
	NRCTransferDataSuspended                   byte = 0x71
	NRCGeneralProgrammingFailure               byte = 0x72
	NRCWrongBlockSequenceCounter               byte = 0x73
	NRCResponsePending                         byte = 0x78
	NRCSubFunctionNotSupportedInActiveSession  byte = 0x7E
	NRCServiceNotSupportedInActiveSession      byte = 0x7F
	NRCRPMTooHigh                              byte = 0x81
	NRCRPMTooLow                               byte = 0x82
	NRCEngineIsRunning                         byte = 0x83
	NRCEngineIsNotRunning                      byte = 0x84
	NRCEngineRunTimeTooLow                     byte = 0x85
	NRCTemperatureTooHigh                      byte = 0x86
	NRCTemperatureTooLow                       byte = 0x87
	NRCVehicleSpeedTooHigh                     byte = 0x88
	NRCVehicleSpeedTooLow                      byte = 0x89
	NRCThrottlePedalTooHigh                    byte = 0x8A
	NRCThrottlePedalTooLow                     byte = 0x8B
	NRCTransmissionRangeNotInNeutral           byte = 0x8C
	NRCTransmissionRangeNotInGear              byte = 0x8D
	NRCBrakeSwitchNotClosed                    byte = 0x8F
	NRCShifterLeverNotInPark                   byte = 0x90
	NRCTorqueConverterClutchLocked             byte = 0x91
	NRCVoltageTooHigh                          byte = 0x92
	NRCVoltageTooLow                           byte = 0x93
)

func TranslateServiceCode(p byte) string {
	switch p {
	case 0x01:
		return "ShowCurrentData"
	case 0x02:
		return "ShowFreezeFrameData"
	case ShowStoredDiagnosticTroubleCodes:
		return "ShowStoredDiagnosticTroubleCodes"
	case 0x04:
		return "ClearDiagnosticTroubleCodes"
	case RequestVehicleInformation:
		return "RequestVehicleInformation"
	case DiagnosticSessionControl:
		return "DiagnosticSessionControl"
	case 0x11:
		return "ECUReset"
	case 0x14:
		return "ClearDiagnosticInformation"
	case 0x19:
		return "ReadDTCInformation"
	case ReadDataByIdentifierSID:
		return "ReadDataByIdentifier"
	case ReadMemoryByAddress:
		return "ReadMemoryByAddress"
	case SecurityAccess:
		return "SecurityAccess"
	case 0x28:
		return "CommunicationControl"
	case 0x2E:
		return "WriteDataByIdentifier"
	case 0x31:
		return "RoutineControl"
	case RequestDownload:
		return "RequestDownload"
	case RequestUpload:
		return "RequestUpload"
	case TransferData:
		return "TransferData"
	case 0x37:
		return "RequestTransferExit"
	case 0x3D:
		return "WriteMemoryByAddress"
	case TesterPresentSID:
		return "TesterPresent"
	case 0x85:
		return "ControlDTCSetting"
	default:
		return "Unknown"
	}
}

func TranslateErrorCode(p byte) string {
	switch p {
	case NRCGeneralReject:
		return "General reject"
	case NRCServiceNotSupported:
		return "Service not supported"
	case NRCSubFunctionNotSupported:
		return "Sub-function not supported"
	case NRCIncorrectMessageLength:
		return "Incorrect message length or invalid format"
	case NRCResponseTooLong:
		return "Response too long"
	case NRCBusyRepeatRequest:
		return "Busy, repeat request"
	case NRCConditionsNotCorrect:
		return "Conditions not correct"
	case NRCRequestSequenceError:
		return "Request sequence error"
	case NRCNoResponseFromSubnet:
		return "No response from subnet component"
	case NRCFailurePreventsExecution:
		return "Failure prevents execution of requested action"
	case NRCRequestOutOfRange:
		return "Request out of range"
	case NRCSecurityAccessDenied:
		return "Security access denied"
	case NRCInvalidKey:
		return "Invalid key"
	case NRCExceededNumberOfAttempts:
		return "Exceeded number of attempts"
	case NRCRequiredTimeDelayNotExpired:
		return "Required time delay not expired"
	case NRCUploadDownloadNotAccepted:
		return "Upload/download not accepted"
	case NRCTransferDataSuspended:
		return "Transfer data suspended"
	case NRCGeneralProgrammingFailure:
		return "General programming failure"
	case NRCWrongBlockSequenceCounter:
		return "Wrong block sequence counter"
	case NRCResponsePending:
		return "Request correctly received, response pending"
	case NRCSubFunctionNotSupportedInActiveSession:
		return "Sub-function not supported in active session"
	case NRCServiceNotSupportedInActiveSession:
		return "Service not supported in active session"
	case NRCRPMTooHigh:
		return "RPM too high"
	case NRCRPMTooLow:
		return "RPM too low"
	case NRCEngineIsRunning:
		return "Engine is running"
	case NRCEngineIsNotRunning:
		return "Engine is not running"
	case NRCEngineRunTimeTooLow:
		return "Engine run time too low"
	case NRCTemperatureTooHigh:
		return "Temperature too high"
	case NRCTemperatureTooLow:
		return "Temperature too low"
	case NRCVehicleSpeedTooHigh:
		return "Vehicle speed too high"
	case NRCVehicleSpeedTooLow:
		return "Vehicle speed too low"
	case NRCThrottlePedalTooHigh:
		return "Throttle/pedal too high"
	case NRCThrottlePedalTooLow:
		return "Throttle/pedal too low"
	case NRCTransmissionRangeNotInNeutral:
		return "Transmission range not in neutral"
	case NRCTransmissionRangeNotInGear:
		return "Transmission range not in gear"
	case NRCBrakeSwitchNotClosed:
		return "Brake switch not closed"
	case NRCShifterLeverNotInPark:
		return "Shifter lever not in park"
	case NRCTorqueConverterClutchLocked:
		return "Torque converter clutch locked"
	case NRCVoltageTooHigh:
		return "Voltage too high"
	case NRCVoltageTooLow:
		return "Voltage too low"
	default:
		return "Unknown"
	}
}
