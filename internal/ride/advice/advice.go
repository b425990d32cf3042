// Package advice maps a ride verdict and its hazard counters to actionable
// recommendations.
package advice

import (
	"fmt"

	"github.com/banshee-data/ride.report/internal/ride/tokens"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
)

// Category groups recommendations in the report.
type Category string

const (
	Critical     Category = "CRITICAL"
	Warning      Category = "WARNING"
	Improvement  Category = "IMPROVEMENT"
	Awareness    Category = "AWARENESS"
	Achievement  Category = "ACHIEVEMENT"
	Optimization Category = "OPTIMIZATION"
	Mastery      Category = "MASTERY"
	Community    Category = "COMMUNITY"
	General      Category = "General Dhaka Tips"
)

// Section is a report heading for one category.
type Section struct {
	Category Category
	Heading  string
}

// Sections lists the categories in report order.
var Sections = []Section{
	{Critical, "[!!] CRITICAL ACTIONS (Do This Today)"},
	{Warning, "[!] WARNING (Next Ride)"},
	{Improvement, "[+] IMPROVEMENT TIPS (Practice These)"},
	{Awareness, "[*] AWARENESS (Learn These Patterns)"},
	{Achievement, "[*] ACHIEVEMENT (You Nailed It!)"},
	{Optimization, "[~] OPTIMIZATION (Smart Riding)"},
	{Mastery, "[+] MASTERY (Advanced Tips)"},
	{Community, "[&] COMMUNITY (Help Others)"},
	{General, "[?] DHAKA SURVIVAL TIPS (Daily Reminder)"},
}

// Recommendation is one actionable tip.
type Recommendation struct {
	Category Category `json:"category"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
}

// rule adds a recommendation when when reports true.
type rule struct {
	category Category
	title    string
	text     func(s verdict.Stats) string
	when     func(s verdict.Stats, descs []*tokens.Set) bool
}

func fixed(text string) func(verdict.Stats) string {
	return func(verdict.Stats) string { return text }
}

func always(verdict.Stats, []*tokens.Set) bool { return true }

func present(t tokens.Token) func(verdict.Stats, []*tokens.Set) bool {
	return func(_ verdict.Stats, descs []*tokens.Set) bool {
		return verdict.CountToken(descs, t) > 0
	}
}

func positive(field func(verdict.Stats) int) func(verdict.Stats, []*tokens.Set) bool {
	return func(s verdict.Stats, _ []*tokens.Set) bool { return field(s) > 0 }
}

var unsafeRules = []rule{
	{
		Critical, "The '3-Second Rule' Drill",
		fixed("You are tailgating frequently. Practice the 'Count-to-Three' drill: Pick a landmark " +
			"(like a lamp post) passed by the vehicle ahead. If you pass it before counting to three, " +
			"you are too close. Increase your following distance immediately."),
		positive(func(s verdict.Stats) int { return s.Tailgating }),
	},
	{
		Critical, "The 'Escape Route' Replay",
		fixed("Critical Pinch Points detected. Never position yourself where you have zero escape paths. " +
			"When squeezed between two large vehicles, brake and drop back. Do not attempt to squeeze through."),
		positive(func(s verdict.Stats) int { return s.PinchPoints }),
	},
	{
		Critical, "Intentional Pinch Point Entry - High Risk Behavior",
		func(s verdict.Stats) string {
			return fmt.Sprintf("You intentionally entered %d pinch point(s) during this ride. "+
				"This is extremely dangerous behavior. Pinch points (auto on left, divider on right) have zero escape routes. "+
				"Always brake and wait for a clear path rather than forcing your way through tight spaces. "+
				"This behavior significantly increases your collision risk.", s.AggressivePinchEntries)
		},
		positive(func(s verdict.Stats) int { return s.AggressivePinchEntries }),
	},
	{
		Critical, "Phone Lockout Challenge",
		fixed("Phone use detected during riding. Enable 'Do Not Disturb While Riding' mode on your phone. " +
			"Challenge: Complete your next 5 rides phone-free to reset your safety score."),
		positive(func(s verdict.Stats) int { return s.DistractedRiding }),
	},
	{
		Critical, "'Leguna' Awareness Training",
		fixed("Dhaka Context: You rode too close behind heavy vehicles (buses/trucks). In Dhaka, " +
			"'Legunas' stop instantly without signaling. Increase following distance by 2x behind any public transport."),
		positive(func(s verdict.Stats) int { return s.HeavyVehicleConflicts }),
	},
	{
		Critical, "Mandatory Cooling Period",
		fixed("Your riding style is highly reactive today. High fatigue detected. " +
			"We recommend a 15-minute rest before riding again to prevent accidents."),
		func(s verdict.Stats, _ []*tokens.Set) bool { return s.ReactiveSwerves > 5 },
	},
	{
		Warning, "Glare Recovery Tips",
		fixed("High beam glare detected. Solution: Focus your eyes on the *left white line* (or curb) " +
			"of the road to maintain lane discipline without being blinded by oncoming trucks."),
		present(tokens.VisibilityBlindness),
	},
	{
		Critical, "Leguna Brake Recovery Drill",
		fixed("Legunas stop instantly without signaling. When you see a Leguna ahead with brake lights, " +
			"increase distance by 20 meters immediately. Practice 'no signal' anticipation."),
		positive(func(s verdict.Stats) int { return s.LegunaEmergencyStops }),
	},
	{
		Critical, "Wrong-Way Avoidance Protocol",
		fixed("You encountered a vehicle moving toward you in your lane. NEVER assume they'll move. " +
			"Brake hard, drift right, and honk. Practice horn usage on wrong-way vehicles daily."),
		positive(func(s verdict.Stats) int { return s.WrongWayVehicles }),
	},
	{
		Critical, "Jaywalker Prediction Training",
		fixed("Pedestrians cross without looking in Dhaka. When you see someone near the median, " +
			"reduce speed by 30% and scan 3 seconds ahead. Assume every pedestrian will cross."),
		positive(func(s verdict.Stats) int { return s.JaywalkerCrossings }),
	},
	{
		Critical, "Blind Spot Escape Maneuver",
		fixed("A large vehicle is loitering in your blind spot (side edge). Brake and drop back 50 meters. " +
			"Never ride alongside buses/trucks for more than 3 seconds."),
		positive(func(s verdict.Stats) int { return s.BlindSpotLoitering }),
	},
	{
		Critical, "Red Light Discipline Protocol",
		fixed("You ran a red light while moving. In Dhaka, red lights often mean 'conflicting traffic.' " +
			"Always come to a complete stop and check ALL directions before proceeding."),
		positive(func(s verdict.Stats) int { return s.RedLightViolations }),
	},
	{
		Critical, "Gap Shooting Elimination Drill",
		fixed("You aggressively cut through traffic. This is the #1 cause of motorcycle accidents in Dhaka. " +
			"Practice 'patient riding': wait for clear gaps, don't create them."),
		positive(func(s verdict.Stats) int { return s.GapShooting }),
	},
	{
		Critical, "Speed Breaker Technique Mastery",
		fixed("You hit a speed breaker without slowing. Always slow to <10 km/h before breakers. " +
			"If you must swerve, check mirrors first. Never swerve into oncoming traffic."),
		positive(func(s verdict.Stats) int { return s.SpeedBreakerHits }),
	},
	{
		Critical, "Bus Blockade Navigation",
		fixed("A bus blocked your entire lane. When blocked, brake hard and wait. Do NOT squeeze under " +
			"the bus or filter into the opposing lane. This causes head-on collisions."),
		positive(func(s verdict.Stats) int { return s.BusBlockades }),
	},
	{
		Critical, "Lane Stability Drill",
		fixed("Your weaving suggests poor lane control or distraction. Spend 30 minutes daily practicing " +
			"smooth throttle and steering inputs. Weaving causes other riders to misjudge your path."),
		positive(func(s verdict.Stats) int { return s.WeavingEvents }),
	},
	{
		Critical, "Slalom Aggression Elimination",
		fixed("You performed aggressive rapid-fire lane changes in dense traffic. This is extremely dangerous. " +
			"Accept a 30-second delay rather than risk a collision. Wait for clear road sections."),
		positive(func(s verdict.Stats) int { return s.SlalomManeuvers }),
	},
}

var moderateRules = []rule{
	{
		Improvement, "The 'Smoothness' Score (Gamified)",
		fixed("Your reflexes are good, but your planning is late. Aim for fewer reactive swerves next ride. " +
			"Brake earlier and softer to reduce sudden lateral movements."),
		positive(func(s verdict.Stats) int { return s.ReactiveSwerves }),
	},
	{
		Awareness, "Rickshaw Prediction Module",
		fixed("Caution: Rickshaws in Dhaka often turn right without looking. When approaching a rickshaw " +
			"from the left, always assume it will cut across your path. Hover your brake."),
		present(tokens.RickshawProximity),
	},
	{
		Warning, "The 'Pinch Point' Warning",
		fixed("You are filtering between large vehicles. In Dhaka, buses often swerve to block motorcycles. " +
			"Avoid filtering if the gap is less than 1.5 meters."),
		present(tokens.TightFiltering),
	},
	{
		Awareness, "Intersection Scanner",
		fixed("Don't enter the intersection unless you can see the pavement on the other side. " +
			"Always have a clear exit before entering the 'box'."),
		always,
	},
	{
		Awareness, "Edge Trap Alert",
		fixed("Watch the curbs. Dhaka roads often have sand or open drains near the edge. " +
			"Stay in the center-left 'tire track' of the car ahead, not the gutter."),
		always,
	},
	{
		Warning, "Late-Night Speed Cap",
		fixed("Roads may be empty but hazards are invisible. At night, reduce speed by 20% " +
			"to account for unlit potholes and dark pedestrians."),
		present(tokens.VisibilityBlindness),
	},
	{
		Improvement, "Lane Control Practice",
		fixed("Minor weaving detected. Practice smooth steering inputs and throttle control on straight roads. " +
			"Use the road markings as a guide for maintaining a consistent line."),
		func(s verdict.Stats, _ []*tokens.Set) bool { return s.WeavingEvents > 0 && s.WeavingEvents <= 2 },
	},
	{
		Awareness, "Gap Shooting Awareness",
		fixed("You attempted to cut through traffic once. Recognize that small gaps close fast in Dhaka. " +
			"Wait for larger, more obvious openings to move safely."),
		func(s verdict.Stats, _ []*tokens.Set) bool { return s.GapShooting == 1 },
	},
}

var safeRules = []rule{
	{
		Achievement, "Safety Streak Badge",
		fixed("Proactive Rider Badge Earned! You successfully anticipated 100% of traffic stops today. " +
			"Excellent defensive riding."),
		func(s verdict.Stats, _ []*tokens.Set) bool { return s.PinchPoints == 0 },
	},
	{
		Optimization, "Route Optimization",
		fixed("You handled the traffic jam safely, but spent significant time stationary. " +
			"Consider alternative routes to avoid known choke points like Mogbazar Flyover."),
		present(tokens.TrafficJamSafe),
	},
	{
		Mastery, "Defensive Mentor Status",
		fixed("You have mastered space management. Invite a friend to 'Shadow Ride' with you " +
			"to learn your proactive habits and improve their safety."),
		func(_ verdict.Stats, descs []*tokens.Set) bool {
			n := 0
			for _, d := range descs {
				if d.Has(tokens.SafeGap) || d.Has(tokens.TrafficJamSafe) {
					n++
				}
			}
			return n > 3
		},
	},
	{
		Community, "Pothole Contribution",
		fixed("If you encountered any hazards during this ride, tag them on the app to warn other riders. " +
			"Help build a safer Dhaka community."),
		always,
	},
}

var generalTips = []Recommendation{
	{General, "The 'Look-Look-Go' Rule",
		"Before entering a main road from a side street in Dhaka, look Right, then Left, then Right again. " +
			"Rickshaws often travel the wrong way."},
	{General, "CNG Cage Awareness",
		"CNGs have a massive blind spot on their right rear due to the metal cage. " +
			"Never linger near the right rear wheel of a CNG."},
	{General, "Pedestrian 'Dark Mode' Warning",
		"Pedestrians often wear dark clothes and cross unlit highways at night. " +
			"Scan the median, not just the road ahead."},
	{General, "The 'Sandwich' Exit",
		"If you find yourself between two buses, brake and drop back. " +
			"Do not accelerate to beat them unless you have 100% clear open road ahead."},
}

// Select returns the verdict branch's recommendations followed by the
// general tips. Stats are expected to be back-filled.
func Select(level verdict.Level, s verdict.Stats, descs []*tokens.Set) []Recommendation {
	var rules []rule
	switch level {
	case verdict.Unsafe:
		rules = unsafeRules
	case verdict.ModerateRisk, verdict.Caution:
		rules = moderateRules
	case verdict.Safe:
		rules = safeRules
	}

	out := make([]Recommendation, 0, len(rules)+len(generalTips))
	for _, r := range rules {
		if r.when(s, descs) {
			out = append(out, Recommendation{Category: r.category, Title: r.title, Text: r.text(s)})
		}
	}
	return append(out, generalTips...)
}

// Group buckets recommendations by category, preserving their order.
func Group(recs []Recommendation) map[Category][]Recommendation {
	g := make(map[Category][]Recommendation)
	for _, r := range recs {
		g[r.Category] = append(g[r.Category], r)
	}
	return g
}
