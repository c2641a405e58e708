package biometrics

// Modality identifies a biometric sensor class. Values are bitflags so that
// multi-sensor prompts and authenticator masks can be expressed as a union.
type Modality uint32

const (
	ModalityNone        Modality = 0
	ModalityCredential  Modality = 1 << 0
	ModalityFingerprint Modality = 1 << 1
	ModalityIris        Modality = 1 << 2
	ModalityFace        Modality = 1 << 3
)

func (m Modality) String() string {
	switch m {
	case ModalityNone:
		return "none"
	case ModalityCredential:
		return "credential"
	case ModalityFingerprint:
		return "fingerprint"
	case ModalityIris:
		return "iris"
	case ModalityFace:
		return "face"
	default:
		return "multiple"
	}
}

type modalityCaps struct {
	supportsConfirmation bool
	pausable             bool
}

// The modality set is small and fixed per build, so capabilities live in a
// closed table rather than behind an interface. Passive modalities (face,
// iris) can pause and offer a try-again affordance; fingerprint cannot.
var modalityCapabilities = map[Modality]modalityCaps{
	ModalityFingerprint: {supportsConfirmation: false, pausable: false},
	ModalityIris:        {supportsConfirmation: true, pausable: true},
	ModalityFace:        {supportsConfirmation: true, pausable: true},
}

// SupportsConfirmation reports whether the modality can gate success behind
// an explicit user confirmation step.
func (m Modality) SupportsConfirmation() bool {
	return modalityCapabilities[m].supportsConfirmation
}

// Pausable reports whether a failed match pauses the session instead of
// terminating it.
func (m Modality) Pausable() bool {
	return modalityCapabilities[m].pausable
}

// Strength classifies which authenticators a caller accepts. Strong
// biometrics may release cryptographic material; the credential bit sits
// apart from the biometric bits so fallback can strip one without the other.
type Strength uint32

const (
	StrengthStrong      Strength = 1 << 0
	StrengthWeak        Strength = 1 << 1
	StrengthConvenience Strength = 1 << 2
	StrengthCredential  Strength = 1 << 15

	strengthBiometricMask = StrengthStrong | StrengthWeak | StrengthConvenience
)

// AllowsBiometric reports whether any biometric class is acceptable.
func (s Strength) AllowsBiometric() bool {
	return s&strengthBiometricMask != 0
}

// AllowsCredential reports whether the device credential is acceptable.
func (s Strength) AllowsCredential() bool {
	return s&StrengthCredential != 0
}

// StripBiometric removes all biometric bits, leaving at most the credential
// bit. Used when a hardware error forces the credential fallback.
func (s Strength) StripBiometric() Strength {
	return s &^ strengthBiometricMask
}

// AuthType tells the caller which authenticator class produced a successful
// outcome.
type AuthType int

const (
	AuthTypeBiometric AuthType = iota
	AuthTypeCredential
)

func (t AuthType) String() string {
	if t == AuthTypeCredential {
		return "credential"
	}
	return "biometric"
}
