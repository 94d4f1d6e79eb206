package query

import "GoSearch/internal/automaton"

// acceptViaAutomaton runs term through a's DFA transitions and reports
// whether it lands in an accepting state.
func acceptViaAutomaton(a automaton.Automaton, term string) bool {
	state := a.Start()
	for i := 0; i < len(term); i++ {
		state = a.Step(state, term[i])
		if !a.CanMatch(state) {
			return false
		}
	}
	return a.IsAccept(state)
}

func acceptWildcard(pattern string) (func(string) bool, error) {
	a, err := automaton.NewWildcardAutomaton([]byte(pattern))
	if err != nil {
		return nil, err
	}
	return func(term string) bool { return acceptViaAutomaton(a, term) }, nil
}

func acceptFuzzy(target string, maxDist int) (func(string) bool, error) {
	a, err := automaton.NewLevenshteinAutomaton([]byte(target), maxDist)
	if err != nil {
		return nil, err
	}
	return func(term string) bool { return acceptViaAutomaton(a, term) }, nil
}
