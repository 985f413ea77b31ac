package recommender

var SynthesizeQuery = synthesizeQuery
