package core

import "errors"

var validationErrors = []error{
	ErrInvalidAmount, ErrEmptyName, ErrInvalidType,
	ErrMissingAccount, ErrInvalidEmail, ErrEmptyPassword,
}

// IsValidationError reports whether err comes from input validation.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationMessage maps domain validation errors to user-facing text.
func ValidationMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "Importo non valido: inserire un valore maggiore di zero"
	case errors.Is(err, ErrEmptyName):
		return "Il nome è obbligatorio"
	case errors.Is(err, ErrInvalidType):
		return "Tipo di transazione non valido"
	case errors.Is(err, ErrMissingAccount):
		return "Seleziona un conto"
	case errors.Is(err, ErrInvalidEmail):
		return "Indirizzo email non valido"
	case errors.Is(err, ErrEmptyPassword):
		return "La password è obbligatoria"
	default:
		return "Dati non validi"
	}
}
