// Package placeholder extracts, validates and substitutes {{name}} tokens in
// template markup. Substitution is a single flat pass: there is no escaping
// and no control-flow syntax.
package placeholder
