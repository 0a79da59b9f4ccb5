package extractor

// Seletores CSS da lista de partidas ao vivo
const (
	selEvent     = ".event"
	selTeams     = ".btmarket__link-name--2-rows span"
	selOdds      = ".btmarket__actions .betbutton__odds"
	selClock     = ".btmarket__boundary label.wh-label"
	selScoreHome = ".btmarket__livescore-item.team-a"
	selScoreAway = ".btmarket__livescore-item.team-b"
	selMoreBets  = "a.btmarket__more-bets-counter"
)
