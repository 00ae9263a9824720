package account

// MaxStrength is the highest score ScorePassword returns.
const MaxStrength = 5

var strengthLabels = [...]string{
	"Sin contraseña",
	"Muy débil",
	"Débil",
	"Media",
	"Fuerte",
	"Muy fuerte",
}

// Strength is a password score in [0, MaxStrength] with its checklist.
type Strength struct {
	Score      int
	Label      string
	MinLength  bool
	LongEnough bool
	MixedCase  bool
	HasDigit   bool
	HasSymbol  bool
}

// ScorePassword awards one point each for length >= 8, length >= 12,
// mixed case, a digit and a non-alphanumeric character.
func ScorePassword(password string) Strength {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	s := Strength{
		MinLength:  len(password) >= MinPasswordLength,
		LongEnough: len(password) >= 12,
		MixedCase:  lower && upper,
		HasDigit:   digit,
		HasSymbol:  symbol,
	}
	for _, ok := range []bool{s.MinLength, s.LongEnough, s.MixedCase, s.HasDigit, s.HasSymbol} {
		if ok {
			s.Score++
		}
	}
	s.Label = strengthLabels[s.Score]
	return s
}
