// Package interpreter evaluates microlisp expressions against a binding
// environment. Every element of a call form is evaluated before dispatch
// except when the head is the literal atom LAMBDA. Closures capture no
// environment; their parameters are substituted into a copy of the body and
// the result is evaluated in the caller's environment (dynamic scope).
package interpreter
