package complaint

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mmust/marktrack/core"
)

var (
	missingMarkTag  = "missingmark"
	missingMarkText = "{0} must be one of CAT, EXAM or ALL"

	outcomeTag  = "outcome"
	outcomeText = "{0} must be one of 'No Result', 'No CAT Mark', 'No Exam Mark' or 'Result Loaded'"
)

// InitValidators registers the complaint validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(missingMarkTag, oneOfValidation(MissingMarks))
	core.RegisterCustomTranslation(validate, translator, missingMarkTag, missingMarkText)

	_ = validate.RegisterValidation(outcomeTag, oneOfValidation(Outcomes))
	core.RegisterCustomTranslation(validate, translator, outcomeTag, outcomeText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}
}
